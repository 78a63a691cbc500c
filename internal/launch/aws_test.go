package launch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemyapp/instance-launcher/internal/logger"
	"github.com/telemyapp/instance-launcher/internal/metrics"
)

type fakeEC2 struct {
	mu     sync.Mutex
	inputs []*ec2.RunInstancesInput
	out    *ec2.RunInstancesOutput
	err    error
}

func (f *fakeEC2) RunInstances(_ context.Context, params *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, params)
	return f.out, f.err
}

func outputWithID(id *string) *ec2.RunInstancesOutput {
	return &ec2.RunInstancesOutput{Instances: []ec2types.Instance{{InstanceId: id}}}
}

func newTestAWSLauncher(client RunInstancesAPI, opts Options) *AWSLauncher {
	l := NewAWSLauncherWithClient(client, "us-east-1", opts, logger.Discard())
	l.clientToken = func() string { return "token-1" }
	return l
}

func TestAWSLaunch_SendsSingleInstanceRequestWithNameTag(t *testing.T) {
	client := &fakeEC2{out: outputWithID(aws.String("i-12345"))}
	l := newTestAWSLauncher(client, Options{InstanceType: "t4g.large", KeyName: "deploy-key"})

	res, err := l.Launch(context.Background(), Request{ImageID: "ami-0abc", InstanceName: "web-1", Tagged: true})
	require.NoError(t, err)
	assert.Equal(t, "i-12345", res.InstanceID)
	assert.Equal(t, "aws", res.Provider)

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "ami-0abc", aws.ToString(in.ImageId))
	assert.Equal(t, ec2types.InstanceType("t4g.large"), in.InstanceType)
	assert.EqualValues(t, 1, aws.ToInt32(in.MinCount))
	assert.EqualValues(t, 1, aws.ToInt32(in.MaxCount))
	assert.Equal(t, "deploy-key", aws.ToString(in.KeyName))
	assert.Equal(t, "token-1", aws.ToString(in.ClientToken))

	require.Len(t, in.TagSpecifications, 1)
	ts := in.TagSpecifications[0]
	assert.Equal(t, ec2types.ResourceTypeInstance, ts.ResourceType)
	require.Len(t, ts.Tags, 1)
	assert.Equal(t, "Name", aws.ToString(ts.Tags[0].Key))
	assert.Equal(t, "web-1", aws.ToString(ts.Tags[0].Value))
}

func TestAWSLaunch_OmitsTagAndKeyWhenNotConfigured(t *testing.T) {
	client := &fakeEC2{out: outputWithID(aws.String("i-1"))}
	l := newTestAWSLauncher(client, Options{InstanceType: "t4g.large"})

	_, err := l.Launch(context.Background(), Request{ImageID: "ami-1"})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	assert.Empty(t, client.inputs[0].TagSpecifications)
	assert.Nil(t, client.inputs[0].KeyName)
}

func TestAWSLaunch_EmptySuppliedNameStillTagged(t *testing.T) {
	client := &fakeEC2{out: outputWithID(aws.String("i-1"))}
	l := newTestAWSLauncher(client, Options{InstanceType: "t4g.large"})

	_, err := l.Launch(context.Background(), Request{ImageID: "ami-1", Tagged: true})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	require.Len(t, client.inputs[0].TagSpecifications, 1)
	tags := client.inputs[0].TagSpecifications[0].Tags
	require.Len(t, tags, 1)
	assert.Equal(t, "Name", aws.ToString(tags[0].Key))
	assert.Equal(t, "", aws.ToString(tags[0].Value))
}

func TestAWSLaunch_DefaultClientTokenIsUniquePerCall(t *testing.T) {
	client := &fakeEC2{out: outputWithID(aws.String("i-1"))}
	l := NewAWSLauncherWithClient(client, "us-east-1", Options{InstanceType: "t4g.large"}, logger.Discard())

	for i := 0; i < 2; i++ {
		_, err := l.Launch(context.Background(), Request{ImageID: "ami-1"})
		require.NoError(t, err)
	}
	require.Len(t, client.inputs, 2)
	first, second := aws.ToString(client.inputs[0].ClientToken), aws.ToString(client.inputs[1].ClientToken)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestAWSLaunch_EmptyResults(t *testing.T) {
	tests := []struct {
		name string
		out  *ec2.RunInstancesOutput
	}{
		{name: "nil output", out: nil},
		{name: "no instances", out: &ec2.RunInstancesOutput{}},
		{name: "nil instance id", out: outputWithID(nil)},
		{name: "blank instance id", out: outputWithID(aws.String(" "))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestAWSLauncher(&fakeEC2{out: tt.out}, Options{InstanceType: "t4g.large"})
			_, err := l.Launch(context.Background(), Request{ImageID: "ami-1"})
			require.Error(t, err)
			assert.Equal(t, KindEmptyResult, KindOf(err))
			assert.ErrorIs(t, err, ErrEmptyResult)
		})
	}
}

func TestAWSLaunch_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "invalid ami",
			err:  &smithy.GenericAPIError{Code: "InvalidAMIID.NotFound", Message: "missing", Fault: smithy.FaultClient},
			want: KindRejected,
		},
		{
			name: "quota",
			err:  &smithy.GenericAPIError{Code: "InstanceLimitExceeded", Message: "limit"},
			want: KindRejected,
		},
		{
			name: "server fault",
			err:  &smithy.GenericAPIError{Code: "Unavailable", Message: "down", Fault: smithy.FaultServer},
			want: KindUnavailable,
		},
		{
			name: "throttled",
			err:  &smithy.GenericAPIError{Code: "RequestLimitExceeded", Message: "throttle"},
			want: KindUnavailable,
		},
		{
			name: "transport",
			err:  errors.New("dial tcp: connection refused"),
			want: KindUnavailable,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("operation error EC2: RunInstances, %w", context.DeadlineExceeded),
			want: KindTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestAWSLauncher(&fakeEC2{err: tt.err}, Options{InstanceType: "t4g.large"})
			_, err := l.Launch(context.Background(), Request{ImageID: "ami-1"})
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAWSLaunch_RecordsOperationMetrics(t *testing.T) {
	metrics.ResetDefaultForTest()
	l := newTestAWSLauncher(&fakeEC2{out: outputWithID(aws.String("i-1"))}, Options{InstanceType: "t4g.large"})
	_, err := l.Launch(context.Background(), Request{ImageID: "ami-1"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	metrics.Default().Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `launcher_provider_operations_total{op="run_instances",provider="aws",status="ok"} 1`)
}
