package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/docuflow/go-document-idp/internal/aws"
	"github.com/docuflow/go-document-idp/internal/documents"
	"github.com/docuflow/go-document-idp/internal/handlers"
	"github.com/docuflow/go-document-idp/internal/logging"
	"github.com/docuflow/go-document-idp/internal/storage"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDocumentRoutes(r, cfg)

	return r
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"), "api-documents-idp")

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	store := storage.NewStore(clients.DynamoDB, os.Getenv("TABLE_NAME"))
	publisher := aws.NewPublisher(clients.SQS, os.Getenv("SQS_URL_AFTER_IDP_PROCESSING"))
	objects := aws.NewObjectStore(clients.S3, clients.S3Presign, os.Getenv("S3_BUCKET_NAME"))
	service := documents.NewService(store, publisher, objects, logger)

	r := setupRouter(handlers.HandlerConfig{
		Service: service,
		Logger:  logger,
	})

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		logger.Info("running local server", "addr", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
