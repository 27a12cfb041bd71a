package queue

// PathJobRequest selects the pairs a path job explains and how paths are
// searched.
type PathJobRequest struct {
	// DiseaseIDs restricts the job to these diseases; empty means every
	// disease with predictions.
	DiseaseIDs []string `json:"disease_ids,omitempty" validate:"omitempty,max=500,dive,required"`
	TopN       int      `json:"top_n,omitempty" validate:"gte=0,lte=1000"`
	Enrichment bool     `json:"enrichment"`
	Layer      int      `json:"layer,omitempty" validate:"gte=0,lte=2"`
	MaxDepth   int      `json:"max_depth,omitempty" validate:"gte=0,lte=6"`
}

type QueuePathJobMsg struct {
	Message string         `json:"message"`
	JobID   string         `json:"job_id"`
	Request PathJobRequest `json:"request"`
}
