// Package report renders count-session variance reports as markdown, terminal text, and XLSX.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/domain"
)

// Source supplies the rows a variance report is built from.
type Source interface {
	GetSession(ctx context.Context, sessionID string) (domain.CountSession, error)
	GetLocation(ctx context.Context, locationID string) (domain.Location, error)
	ListSessionItems(ctx context.Context, sessionID string) ([]domain.CountItem, error)
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error)
}

// Line is one counted product in a variance report.
type Line struct {
	Position     int
	ItemID       string
	ProductID    string
	SKU          string
	Name         string
	System       int
	Counted      *int
	Variance     *int
	Status       domain.ItemStatus
	CountedBy    string
	Notes        string
	BelowMinimum bool
}

// HasVariance reports whether the line carries a nonzero variance.
func (l Line) HasVariance() bool {
	return l.Variance != nil && *l.Variance != 0
}

// VarianceReport is a point-in-time view of one count session.
type VarianceReport struct {
	Session     domain.CountSession
	Location    domain.Location
	Progress    domain.CountProgress
	Lines       []Line
	GeneratedAt time.Time
}

// Variances returns the lines that carry a variance.
func (r VarianceReport) Variances() []Line {
	out := make([]Line, 0, len(r.Lines))
	for _, line := range r.Lines {
		if line.HasVariance() {
			out = append(out, line)
		}
	}
	return out
}

// Title returns the report heading.
func (r VarianceReport) Title() string {
	return fmt.Sprintf("Count report: %s", r.Session.Name)
}

// Load collects session data from src and builds the report.
func Load(ctx context.Context, src Source, sessionID string, now time.Time) (VarianceReport, error) {
	session, err := src.GetSession(ctx, sessionID)
	if err != nil {
		return VarianceReport{}, err
	}
	location, err := src.GetLocation(ctx, session.LocationID)
	if err != nil {
		return VarianceReport{}, fmt.Errorf("load session location: %w", err)
	}
	items, err := src.ListSessionItems(ctx, session.ID)
	if err != nil {
		return VarianceReport{}, err
	}
	products, err := src.ListProducts(ctx, true)
	if err != nil {
		return VarianceReport{}, err
	}
	return BuildVarianceReport(session, location, items, products, now), nil
}

// BuildVarianceReport joins items to their products. Items whose product is gone keep their id as SKU.
func BuildVarianceReport(session domain.CountSession, location domain.Location, items []domain.CountItem, products []domain.Product, now time.Time) VarianceReport {
	byID := make(map[string]domain.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		line := Line{
			Position:  item.Position,
			ItemID:    item.ID,
			ProductID: item.ProductID,
			SKU:       item.ProductID,
			System:    item.SystemQuantity,
			Counted:   item.CountedQuantity,
			Variance:  item.Variance,
			Status:    item.Status,
			CountedBy: item.CountedBy,
			Notes:     item.Notes,
		}
		if product, ok := byID[item.ProductID]; ok {
			line.SKU = product.SKU
			line.Name = product.Name
			current := item.SystemQuantity
			if applied, ok := item.AppliedQuantity(); ok {
				current = applied
			} else if item.CountedQuantity != nil {
				current = *item.CountedQuantity
			}
			line.BelowMinimum = product.BelowMinimum(current)
		}
		lines = append(lines, line)
	}
	return VarianceReport{
		Session:     session,
		Location:    location,
		Progress:    domain.ComputeProgress(items),
		Lines:       lines,
		GeneratedAt: now.UTC(),
	}
}

// Markdown renders the report as GitHub-flavored markdown.
func Markdown(r VarianceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeCell(r.Title()))
	fmt.Fprintf(&b, "- **Location:** %s\n", escapeCell(r.Location.Name))
	fmt.Fprintf(&b, "- **Status:** %s\n", r.Session.Status)
	fmt.Fprintf(&b, "- **Kind:** %s\n", r.Session.Kind)
	if r.Session.StartedAt != nil {
		fmt.Fprintf(&b, "- **Started:** %s\n", r.Session.StartedAt.Format(time.RFC3339))
	}
	if r.Session.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Completed:** %s\n", r.Session.CompletedAt.Format(time.RFC3339))
	}
	if desc := strings.TrimSpace(r.Session.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}

	p := r.Progress
	b.WriteString("\n## Progress\n\n")
	b.WriteString("| Items | Pending | Counted | Verified | Done | With variance | Net variance | Absolute variance |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d%% | %d | %+d | %d |\n",
		p.TotalItems, p.Pending, p.Counted, p.Verified, p.Percent, p.WithVariance, p.NetVariance, p.AbsoluteVariance)

	variances := r.Variances()
	b.WriteString("\n## Variances\n\n")
	if len(variances) == 0 {
		b.WriteString("No variances recorded.\n")
	} else {
		b.WriteString("| SKU | Product | System | Counted | Variance | Status |\n")
		b.WriteString("|---|---|---:|---:|---:|---|\n")
		for _, line := range variances {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s |\n",
				escapeCell(line.SKU), escapeCell(line.Name), line.System, formatInt(line.Counted, "%d"), formatInt(line.Variance, "%+d"), line.Status)
		}
	}

	pending := make([]Line, 0)
	for _, line := range r.Lines {
		if line.Status == domain.ItemStatusPending {
			pending = append(pending, line)
		}
	}
	if len(pending) > 0 {
		b.WriteString("\n## Not yet counted\n\n")
		for _, line := range pending {
			fmt.Fprintf(&b, "- %s %s (system %d)\n", escapeCell(line.SKU), escapeCell(line.Name), line.System)
		}
	}
	return b.String()
}

func formatInt(v *int, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

// escapeCell keeps user text from breaking table rows.
func escapeCell(v string) string {
	v = strings.ReplaceAll(v, "|", `\|`)
	return strings.ReplaceAll(v, "\n", " ")
}
