package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: http
    enabled: true
    http:
      url: https://example.com/2
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "http2" {
		t.Fatalf("expected only http2 enabled, got %#v", enabled)
	}
}

func TestValidatePublisherConfigRejectsMissingHTTP(t *testing.T) {
	err := validatePublisherConfig(PublisherConfig{
		ID:   "h1",
		Type: TypeHTTP,
	})
	if err == nil {
		t.Fatalf("expected validation error for missing http block")
	}
}

func TestLoadRegistryParsesAllTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: queue
    type: SQS
    sqs:
      uri: " https://sqs.us-east-1.amazonaws.com/1/renders "
      region: us-east-1
  - id: topic
    type: sns
    sns:
      topic_arn: arn:aws:sns:us-east-1:1:renders
      region: us-east-1
      access_key_id: key
      secret_access_key: secret
  - id: pubsub
    type: gcp_pubsub
    gcp_pubsub:
      project_id: proj
      topic: renders
  - id: hook
    type: http
    http:
      url: https://example.com/hook
      headers:
        X-Empty: ""
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := len(reg.All()); got != 4 {
		t.Fatalf("expected 4 publishers, got %d", got)
	}

	queue, ok := reg.ByID("queue")
	if !ok || queue.Type != TypeSQS {
		t.Fatalf("queue publisher not normalized: %#v", queue)
	}
	if queue.SQS.QueueURL != "https://sqs.us-east-1.amazonaws.com/1/renders" || queue.SQS.Region != "us-east-1" {
		t.Fatalf("sqs config not trimmed: %#v", queue.SQS)
	}

	topic, _ := reg.ByID("topic")
	if topic.SNS == nil || topic.SNS.AccessKeyID != "key" || topic.SNS.SecretAccessKey != "secret" {
		t.Fatalf("sns credentials not decoded: %#v", topic.SNS)
	}

	hook, _ := reg.ByID("hook")
	if hook.HTTP.Method != httpDefaultMethod || hook.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("http defaults not applied: %#v", hook.HTTP)
	}
	if hook.HTTP.Headers != nil {
		t.Fatalf("empty headers should be dropped: %#v", hook.HTTP.Headers)
	}
}

func TestLoadRegistryRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.json")
	raw := `{"publishers":[
		{"id":"a","type":"http","http":{"url":"https://example.com"}},
		{"id":"a","type":"http","http":{"url":"https://example.com/2"}}
	]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  PublisherConfig
	}{
		{name: "sqs without region", cfg: PublisherConfig{ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "u"}}},
		{name: "sns without topic", cfg: PublisherConfig{ID: "s", Type: TypeSNS, SNS: &SNSPublisherConfig{AWSAuthConfig: AWSAuthConfig{Region: "r"}}}},
		{name: "pubsub without topic", cfg: PublisherConfig{ID: "g", Type: TypeGCPPubSub, GCP: &GCPPubSubConfig{ProjectID: "p"}}},
		{name: "unknown type", cfg: PublisherConfig{ID: "x", Type: "kafka"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validatePublisherConfig(tc.cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
