package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

var (
	_ SecretProvider = (*SSMProvider)(nil)
	_ SecretProvider = (*EnvVarProvider)(nil)
)

type mockSSM struct {
	values  map[string]string
	batches [][]string
	err     error
}

func (m *mockSSM) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.batches = append(m.batches, in.Names)
	if m.err != nil {
		return nil, m.err
	}
	if in.WithDecryption == nil || !*in.WithDecryption {
		return nil, errors.New("expected WithDecryption")
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := m.values[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
	}
	return out, nil
}

func TestSSMProvider_Batches(t *testing.T) {
	client := &mockSSM{values: map[string]string{}}
	var keys []string
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/dev/irrigation/p%02d", i)
		keys = append(keys, k)
		client.values[k] = fmt.Sprintf("v%d", i)
	}

	got, err := newSSMProviderWithClient("eu-central-1", client).GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if len(got) != 23 || got["/dev/irrigation/p22"] != "v22" {
		t.Errorf("unexpected result: %v", got)
	}
	if len(client.batches) != 3 || len(client.batches[2]) != 3 {
		t.Errorf("expected batches of 10/10/3, got %d batches", len(client.batches))
	}
}

func TestSSMProvider_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newSSMProviderWithClient("eu-central-1", &mockSSM{values: map[string]string{}}).
		GetParametersBatch(ctx, []string{"/missing"})
	if err == nil {
		t.Error("expected error for invalid parameter")
	}

	_, err = newSSMProviderWithClient("eu-central-1", &mockSSM{err: errors.New("denied")}).
		GetParametersBatch(ctx, []string{"/a"})
	if err == nil {
		t.Error("expected error from client")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	client := &mockSSM{values: map[string]string{"/a": "1"}}
	if _, err := newSSMProviderWithClient("eu-central-1", client).GetParametersBatch(cancelled, []string{"/a"}); err == nil {
		t.Error("expected error for cancelled context")
	}
	if len(client.batches) != 0 {
		t.Error("no call should be made after cancellation")
	}

	empty, err := NewSSMProvider("eu-central-1", "").GetParametersBatch(ctx, nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("expected empty map for no keys, got %v, %v", empty, err)
	}
}

func TestEnvVarProvider(t *testing.T) {
	t.Setenv("IRRIGATION_TEST_SECRET", "s3cret")

	got, err := NewEnvVarProvider().GetParametersBatch(context.Background(), []string{"IRRIGATION_TEST_SECRET", "IRRIGATION_TEST_ABSENT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got["IRRIGATION_TEST_SECRET"] != "s3cret" {
		t.Errorf("unexpected result %v", got)
	}
}

func TestBuildInfo(t *testing.T) {
	b := NewBuildInfo()
	if b.Version != version || b.Commit != commit {
		t.Errorf("unexpected build info %+v", b)
	}
	if b.String() != "dev (none, built unknown)" {
		t.Errorf("unexpected String(): %s", b.String())
	}
}

func TestProviderFromEnv(t *testing.T) {
	for _, env := range []string{"", "local"} {
		t.Setenv("APP_ENV", env)
		if p := ProviderFromEnv(); p != nil {
			t.Errorf("APP_ENV=%q: expected no provider, got %T", env, p)
		}
		if !IsLocal(env) {
			t.Errorf("APP_ENV=%q should be local", env)
		}
	}

	t.Setenv("APP_ENV", "dev")
	t.Setenv("AWS_REGION", "eu-central-1")
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:4566")
	p, ok := ProviderFromEnv().(*SSMProvider)
	if !ok {
		t.Fatalf("APP_ENV=dev: expected *SSMProvider, got %T", ProviderFromEnv())
	}
	if p.region != "eu-central-1" || p.endpoint != "http://localhost:4566" {
		t.Errorf("unexpected provider settings: %+v", p)
	}
}

func TestLoadConfig_UnsetAppEnvSkipsSSM(t *testing.T) {
	env := map[string]string{"DATABASE_URL_SSM_PARAM": "/dev/irrigation/database/url"}
	t.Setenv("APP_ENV", "dev")
	os.Unsetenv("APP_ENV")
	provider := &testSecretProvider{}

	if _, err := loadConfigWithDeps(provider, testDeps(t, env)); err != nil {
		t.Fatalf("loadConfigWithDeps: %v", err)
	}
	if len(provider.calledWith) != 0 {
		t.Errorf("provider should not be called for an unset APP_ENV, got %v", provider.calledWith)
	}
}
