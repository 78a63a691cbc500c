package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

const (
	providerAWS      = "aws"
	defaultAWSRegion = "us-east-1"
)

// RunInstancesAPI is the slice of the EC2 client the launcher needs.
type RunInstancesAPI interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
}

type AWSLauncher struct {
	client       RunInstancesAPI
	region       string
	instanceType string
	keyName      string
	clientToken  func() string
	log          *slog.Logger
}

// NewAWSLauncher resolves credentials and region once. An explicit region wins; otherwise
// the SDK chain (AWS_REGION, shared profile) applies, falling back to us-east-1.
func NewAWSLauncher(ctx context.Context, region string, opts Options, log *slog.Logger) (*AWSLauncher, error) {
	var loadOpts []func(*awscfg.LoadOptions) error
	if r := strings.TrimSpace(region); r != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(r))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultAWSRegion
	}
	return NewAWSLauncherWithClient(ec2.NewFromConfig(cfg), cfg.Region, opts, log), nil
}

func NewAWSLauncherWithClient(client RunInstancesAPI, region string, opts Options, log *slog.Logger) *AWSLauncher {
	return &AWSLauncher{
		client:       client,
		region:       region,
		instanceType: strings.TrimSpace(opts.InstanceType),
		keyName:      strings.TrimSpace(opts.KeyName),
		clientToken:  uuid.NewString,
		log:          log,
	}
}

func (l *AWSLauncher) Provider() string {
	return providerAWS
}

func (l *AWSLauncher) Launch(ctx context.Context, req Request) (Result, error) {
	input := l.runInput(req)
	l.log.Debug("run instances", "event", "provider_call", "provider", providerAWS, "region", l.region,
		"image_id", req.ImageID, "instance_type", l.instanceType, "client_token", aws.ToString(input.ClientToken))

	start := time.Now()
	out, err := l.client.RunInstances(ctx, input)
	if err != nil {
		lerr := classify(providerAWS, "run_instances", err, awsAPIError)
		observeOperation(providerAWS, "run_instances", string(lerr.Kind), start)
		return Result{}, lerr
	}
	observeOperation(providerAWS, "run_instances", "ok", start)

	if out == nil || len(out.Instances) == 0 {
		return Result{}, emptyResult(providerAWS, "run_instances")
	}
	instanceID := strings.TrimSpace(aws.ToString(out.Instances[0].InstanceId))
	if instanceID == "" {
		return Result{}, emptyResult(providerAWS, "run_instances")
	}
	return Result{InstanceID: instanceID, Provider: providerAWS}, nil
}

// runInput fixes the count at exactly one. The client token makes SDK transport retries
// of the same call land on the same instance.
func (l *AWSLauncher) runInput(req Request) *ec2.RunInstancesInput {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(req.ImageID),
		InstanceType: ec2types.InstanceType(l.instanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		ClientToken:  aws.String(l.clientToken()),
	}
	if l.keyName != "" {
		input.KeyName = aws.String(l.keyName)
	}
	if req.Tagged {
		input.TagSpecifications = []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags: []ec2types.Tag{
					{Key: aws.String("Name"), Value: aws.String(req.InstanceName)},
				},
			},
		}
	}
	return input
}

func awsAPIError(err error) (string, bool, bool) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return "", false, false
	}
	code := strings.TrimSpace(apiErr.ErrorCode())
	if code == "" {
		code = "unknown"
	}
	return code, apiErr.ErrorFault() == smithy.FaultServer || isTransientAWSCode(code), true
}

// Codes EC2 reports without marking them as server faults but which say nothing about
// the request itself.
func isTransientAWSCode(code string) bool {
	switch code {
	case "RequestLimitExceeded",
		"Throttling",
		"ThrottlingException",
		"RequestThrottled",
		"ServiceUnavailable",
		"InternalError",
		"RequestTimeout",
		"EC2ThrottledException",
		"InsufficientInstanceCapacity":
		return true
	default:
		return false
	}
}
