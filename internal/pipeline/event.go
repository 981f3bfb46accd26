package pipeline

import "encoding/json"

// Trigger is the object-created notification that starts a pipeline run.
// Detail stays raw until the validate step parses it; CorrelationID is the
// optional caller-supplied tracing token.
type Trigger struct {
	Time          string          `json:"time"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Detail        json.RawMessage `json:"detail"`
}

// s3Detail is the recognized shape of an object-created event detail.
type s3Detail struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key string `json:"key"`
	} `json:"object"`
}

// Event is the working state threaded through the pipeline steps. It is
// transient, scoped to one run; each step reads it, augments it and hands it
// to the next one.
type Event struct {
	BucketName     string `json:"bucket_name"`
	ObjectKey      string `json:"object_key"`
	InputType      string `json:"input_type"`
	InputExtension string `json:"input_extension"`
	CorrelationID  string `json:"correlation_id"`
	EventTime      string `json:"s3_event_time,omitempty"`

	ExtractedData    map[string]any `json:"response_process_document_json,omitempty"`
	IdentityData     map[string]any `json:"response_analyze_id,omitempty"`
	ProcessOtherNote string         `json:"response_process_other,omitempty"`

	DocumentID     string `json:"document_id,omitempty"`
	SaveStatusCode int    `json:"save_data_response_status_code,omitempty"`

	// Failure terminal: stamped when a step exhausts its retries or hits a
	// fatal error, so the terminal state is observable on the event itself.
	FailedStep   string `json:"failed_step,omitempty"`
	FailureCause string `json:"failure_cause,omitempty"`
}
