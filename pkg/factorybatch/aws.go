package factorybatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ghalamif/FactoryBatch/internal/app/config"
)

// awsClients lazily builds one SDK configuration per runtime and hands out
// service clients sharing it.
type awsClients struct {
	cfg    config.AWSConfig
	loaded *aws.Config
}

func (a *awsClients) config(ctx context.Context) (aws.Config, error) {
	if a.loaded != nil {
		return *a.loaded, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if a.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(a.cfg.Region))
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	a.loaded = &c
	return c, nil
}

func (a *awsClients) dynamo(ctx context.Context) (*dynamodb.Client, error) {
	c, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(c, func(o *dynamodb.Options) {
		if a.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.cfg.Endpoint)
		}
	}), nil
}

func (a *awsClients) s3(ctx context.Context) (*s3.Client, error) {
	c, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(c, func(o *s3.Options) {
		if a.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (a *awsClients) glue(ctx context.Context) (*glue.Client, error) {
	c, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	return glue.NewFromConfig(c, func(o *glue.Options) {
		if a.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.cfg.Endpoint)
		}
	}), nil
}
