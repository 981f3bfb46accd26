package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/docuflow/go-document-idp/internal/aws"
	"github.com/docuflow/go-document-idp/internal/extract"
	"github.com/docuflow/go-document-idp/internal/logging"
	"github.com/docuflow/go-document-idp/internal/pipeline"
	"github.com/docuflow/go-document-idp/internal/storage"
)

func newOrchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	logger := logging.New(os.Getenv("LOG_LEVEL"), "idp-pipeline")

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		return nil, err
	}

	objects := aws.NewObjectStore(clients.S3, clients.S3Presign, os.Getenv("S3_BUCKET_NAME"))
	extractor := extract.NewClient(clients.Bedrock, os.Getenv("BEDROCK_LLM_MODEL_ID"), logger)
	identity := extract.NewIdentityAnalyzer(clients.Textract)
	store := storage.NewStore(clients.DynamoDB, os.Getenv("TABLE_NAME"))
	metrics := aws.NewMetrics(clients.CloudWatch, "DocumentIDP")

	return pipeline.NewOrchestrator(extractor, identity, objects, store, metrics, logger), nil
}

func handler(orchestrator *pipeline.Orchestrator) func(ctx context.Context, ev events.CloudWatchEvent) error {
	return func(ctx context.Context, ev events.CloudWatchEvent) error {
		trigger := pipeline.Trigger{
			Time:   ev.Time.UTC().Format(time.RFC3339),
			Detail: json.RawMessage(ev.Detail),
		}
		_, err := orchestrator.Run(ctx, trigger)
		return err
	}
}

func main() {
	ctx := context.Background()
	orchestrator, err := newOrchestrator(ctx)
	if err != nil {
		log.Fatalf("failed to init pipeline: %v", err)
	}

	// Local testing helper: run one trigger from the environment.
	if os.Getenv("RUN_LOCAL") == "true" {
		detail := os.Getenv("LOCAL_EVENT_DETAIL")
		if detail == "" {
			detail = `{"bucket":{"name":"local-bucket"},"object":{"key":"receipts/local-test.pdf"}}`
		}
		event, err := orchestrator.Run(ctx, pipeline.Trigger{
			Time:   time.Now().UTC().Format(time.RFC3339),
			Detail: json.RawMessage(detail),
		})
		if err != nil {
			log.Fatalf("local pipeline run failed at %s: %v", event.FailedStep, err)
		}
		out, _ := json.Marshal(event)
		log.Printf("local pipeline run succeeded: %s", out)
		return
	}

	lambda.Start(handler(orchestrator))
}
