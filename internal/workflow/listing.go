package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"ddgraph/internal/storage"
)

// PendingItem is one dashboard waiting for a decision.
type PendingItem struct {
	Sidecar
	DashboardKey string `json:"dashboard_key"`
}

// ListPending returns pending dashboards, newest first. An empty companyID
// lists every company.
func (w *Workflow) ListPending(ctx context.Context, companyID string) ([]PendingItem, error) {
	prefix := "dashboards/"
	if companyID != "" {
		prefix = DashboardPrefix(companyID)
	}
	objs, err := w.deps.Store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	items := []PendingItem{}
	for _, o := range objs {
		if path.Base(path.Dir(o.Key)) != PendingApproval.Dir() || !strings.HasSuffix(o.Key, ".json") {
			continue
		}
		data, err := w.deps.Store.Get(ctx, o.Key)
		if err != nil {
			w.logger.Warn("Could not read sidecar %s: %v", o.Key, err)
			continue
		}
		var side Sidecar
		if err := json.Unmarshal(data, &side); err != nil {
			w.logger.Warn("Skipping malformed sidecar %s: %v", o.Key, err)
			continue
		}
		if side.Status != "pending" {
			continue
		}
		items = append(items, PendingItem{Sidecar: side, DashboardKey: strings.TrimSuffix(o.Key, ".json") + ".md"})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].GeneratedAt != items[j].GeneratedAt {
			return items[i].GeneratedAt > items[j].GeneratedAt
		}
		return items[i].DashboardKey > items[j].DashboardKey
	})
	return items, nil
}

// LatestDashboard returns the newest dashboard in the company's primary
// location. Pending and rejected drafts are ignored.
func (w *Workflow) LatestDashboard(ctx context.Context, companyID string) (string, []byte, error) {
	objs, err := w.deps.Store.List(ctx, DashboardPrefix(companyID))
	if err != nil {
		return "", nil, fmt.Errorf("list dashboards: %w", err)
	}
	dir := path.Join("dashboards", companyID)
	var best *storage.Object
	for i := range objs {
		o := &objs[i]
		if path.Dir(o.Key) != dir || !strings.HasSuffix(o.Key, ".md") {
			continue
		}
		if best == nil || o.Modified.After(best.Modified) || (o.Modified.Equal(best.Modified) && o.Key > best.Key) {
			best = o
		}
	}
	if best == nil {
		return "", nil, fmt.Errorf("no dashboard for %s: %w", companyID, storage.ErrNotFound)
	}
	data, err := w.deps.Store.Get(ctx, best.Key)
	if err != nil {
		return "", nil, err
	}
	return best.Key, data, nil
}
