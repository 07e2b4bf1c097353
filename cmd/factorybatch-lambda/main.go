package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	factorybatch "github.com/ghalamif/FactoryBatch"
)

func main() {
	cfg, err := factorybatch.ConfigFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	rt, err := factorybatch.NewRuntime(context.Background(), cfg)
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}

	h, err := selectHandler(os.Getenv("FACTORYBATCH_HANDLER"), rt)
	if err != nil {
		log.Fatal(err)
	}
	lambda.Start(h)
}
