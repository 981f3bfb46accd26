package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/docuflow/go-document-idp/internal/aws"
	"github.com/docuflow/go-document-idp/internal/documents"
	"github.com/docuflow/go-document-idp/internal/logging"
	"github.com/docuflow/go-document-idp/internal/storage"
)

func main() {
	ctx := context.Background()
	logger := logging.New(os.Getenv("LOG_LEVEL"), "after-idp-worker")

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	store := storage.NewStore(clients.DynamoDB, os.Getenv("TABLE_NAME"))
	publisher := aws.NewPublisher(clients.SQS, os.Getenv("SQS_URL_AFTER_IDP_PROCESSING"))
	objects := aws.NewObjectStore(clients.S3, clients.S3Presign, os.Getenv("S3_BUCKET_NAME"))
	service := documents.NewService(store, publisher, objects, logger)

	processor := NewProcessor(service, objects, logger)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"document_id":"local-doc-1","s3_key_original_asset":"receipts/local-test.pdf","correlation_id":"local-corr-1","data":{}}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := processor.Handle(ctx, event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(processor.Handle)
}
