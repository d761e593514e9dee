package checklists

import "time"

// ItemResponse is the outward-facing representation of a checklist item.
type ItemResponse struct {
	ItemID   string `json:"itemId"`
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// ChecklistResponse is the outward-facing representation of a checklist.
type ChecklistResponse struct {
	ChecklistID string         `json:"checklistId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Language    string         `json:"language"`
	IsTemplate  bool           `json:"isTemplate"`
	Items       []ItemResponse `json:"items"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func toItemResponse(item Item) ItemResponse {
	return ItemResponse{
		ItemID:   item.ID,
		Kind:     string(item.Kind),
		Text:     item.Text,
		Position: item.Position,
	}
}

func toResponse(cl Checklist) ChecklistResponse {
	items := make([]ItemResponse, 0, len(cl.Items))
	for _, item := range cl.Items {
		items = append(items, toItemResponse(item))
	}
	return ChecklistResponse{
		ChecklistID: cl.ID,
		Name:        cl.Name,
		Description: cl.Description,
		Language:    cl.Language,
		IsTemplate:  cl.IsTemplate,
		Items:       items,
		CreatedAt:   cl.CreatedAt,
	}
}
