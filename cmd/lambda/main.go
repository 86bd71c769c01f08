// Command lambda serves the dental lab API from AWS Lambda behind API
// Gateway (REST or HTTP API, proxy integration).
package main

import (
	"context"
	"log"
	"os"

	"github.com/DukeRupert/dentalab/internal"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

var adapter *httpadapter.HandlerAdapter

// init runs once per Lambda container (cold start): the database pool and
// counter backend are reused across invocations. Background upkeep only
// advances while the container is thawed.
func init() {
	cfg, err := internal.NewConfig()
	if err != nil {
		log.Fatalf("config initialization failed: %v", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	app, err := internal.NewApp(context.Background(), cfg, logger)
	if err != nil {
		log.Fatal(err)
	}

	go app.Run(context.Background())

	adapter = httpadapter.New(app.Handler())
	logger.Info("Lambda handler ready", "env", cfg.Env)
}

// Handler is the Lambda entrypoint.
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return adapter.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
