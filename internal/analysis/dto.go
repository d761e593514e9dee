package analysis

import "time"

// UnitResponse is the outward-facing representation of a unit.
type UnitResponse struct {
	UnitID      string `json:"unitId"`
	DocumentID  string `json:"documentId"`
	Status      string `json:"status"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// JobResponse is the outward-facing representation of a job.
type JobResponse struct {
	JobID        string         `json:"jobId"`
	Name         string         `json:"name"`
	ChecklistID  string         `json:"checklistId"`
	AIModel      string         `json:"aiModel"`
	Status       string         `json:"status"`
	ErrorSummary string         `json:"errorSummary,omitempty"`
	Units        []UnitResponse `json:"units,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}

// ResultItemResponse is the outward-facing representation of one result.
type ResultItemResponse struct {
	ChecklistItemID string   `json:"checklistItemId"`
	Answer          string   `json:"answer,omitempty"`
	Verdict         *bool    `json:"verdict,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Evidence        string   `json:"evidence,omitempty"`
	Pages           []int    `json:"pages,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// DocumentResultsResponse is one document's bucket of results.
type DocumentResultsResponse struct {
	DocumentID          string               `json:"documentId"`
	ConditionsTrue      int                  `json:"conditionsTrue"`
	ConditionsFalse     int                  `json:"conditionsFalse"`
	ConditionsUndecided int                  `json:"conditionsUndecided"`
	Questions           int                  `json:"questions"`
	ItemErrors          int                  `json:"itemErrors"`
	Items               []ResultItemResponse `json:"items"`
}

func toJobResponse(job Job, units []Unit) JobResponse {
	resp := JobResponse{
		JobID:        job.ID,
		Name:         job.Name,
		ChecklistID:  job.ChecklistID,
		AIModel:      job.AIModel,
		Status:       string(job.Status),
		ErrorSummary: job.ErrorSummary,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
	for _, u := range units {
		resp.Units = append(resp.Units, UnitResponse{
			UnitID:      u.ID,
			DocumentID:  u.DocumentID,
			Status:      string(u.Status),
			ErrorDetail: u.ErrorDetail,
		})
	}
	return resp
}

func toResultsResponse(grouped []DocumentResults) []DocumentResultsResponse {
	out := make([]DocumentResultsResponse, 0, len(grouped))
	for _, bucket := range grouped {
		resp := DocumentResultsResponse{
			DocumentID:          bucket.DocumentID,
			ConditionsTrue:      bucket.Summary.ConditionsTrue,
			ConditionsFalse:     bucket.Summary.ConditionsFalse,
			ConditionsUndecided: bucket.Summary.ConditionsUndecided,
			Questions:           bucket.Summary.Questions,
			ItemErrors:          bucket.Summary.ItemErrors,
			Items:               make([]ResultItemResponse, 0, len(bucket.Items)),
		}
		for _, item := range bucket.Items {
			resp.Items = append(resp.Items, ResultItemResponse{
				ChecklistItemID: item.ChecklistItemID,
				Answer:          item.Answer,
				Verdict:         item.Verdict,
				Confidence:      item.Confidence,
				Evidence:        item.Evidence,
				Pages:           item.Pages,
				Error:           item.ErrorMessage,
			})
		}
		out = append(out, resp)
	}
	return out
}
