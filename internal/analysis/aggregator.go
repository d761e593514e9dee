package analysis

import (
	"context"
	"sort"
)

// Aggregator records result items and builds the grouped-by-document view.
type Aggregator struct {
	Repo Repo
}

// Record persists one result item. Recording the same (unit, checklist item)
// key twice keeps a single item with the latest write.
func (a *Aggregator) Record(ctx context.Context, item ResultItem) error {
	return a.Repo.SaveResult(ctx, item)
}

// DocumentSummary holds per-document statistics computed on read. Conditions
// count as true or false only on an explicit verdict; a condition the model
// answered without one is undecided, not false.
type DocumentSummary struct {
	ConditionsTrue      int
	ConditionsFalse     int
	ConditionsUndecided int
	Questions           int
	ItemErrors          int
}

// DocumentResults is one document's bucket of result items in checklist-item
// order.
type DocumentResults struct {
	DocumentID string
	Items      []ResultItem
	Summary    DocumentSummary
}

// GroupedResults groups a job's result items by document. Document buckets
// follow unit sequence order; items within a bucket follow checklist order.
func (a *Aggregator) GroupedResults(ctx context.Context, jobID string, checklist ChecklistRef) ([]DocumentResults, error) {
	units, err := a.Repo.ListUnits(ctx, jobID)
	if err != nil {
		return nil, err
	}
	results, err := a.Repo.ListResults(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return groupResults(units, results, checklist), nil
}

func groupResults(units []Unit, results []ResultItem, checklist ChecklistRef) []DocumentResults {
	itemOrder := make(map[string]int, len(checklist.Items))
	itemKind := make(map[string]ItemKind, len(checklist.Items))
	for i, item := range checklist.Items {
		itemOrder[item.ID] = i
		itemKind[item.ID] = item.Kind
	}

	byDocument := make(map[string][]ResultItem)
	for _, res := range results {
		byDocument[res.DocumentID] = append(byDocument[res.DocumentID], res)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Seq < units[j].Seq })

	out := make([]DocumentResults, 0, len(units))
	for _, unit := range units {
		items := byDocument[unit.DocumentID]
		sort.Slice(items, func(i, j int) bool {
			return itemOrder[items[i].ChecklistItemID] < itemOrder[items[j].ChecklistItemID]
		})

		var summary DocumentSummary
		for _, item := range items {
			if item.Errored() {
				summary.ItemErrors++
				continue
			}
			switch itemKind[item.ChecklistItemID] {
			case KindCondition:
				switch {
				case item.Verdict == nil:
					summary.ConditionsUndecided++
				case *item.Verdict:
					summary.ConditionsTrue++
				default:
					summary.ConditionsFalse++
				}
			case KindQuestion:
				summary.Questions++
			}
		}

		out = append(out, DocumentResults{
			DocumentID: unit.DocumentID,
			Items:      items,
			Summary:    summary,
		})
	}
	return out
}
