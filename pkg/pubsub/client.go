// Package pubsub opens the Cloud Pub/Sub connection used to publish domain
// events. The PUBSUB_EMULATOR_HOST variable is honoured by the SDK itself.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

// Client owns the SDK client and the single domain topic publisher.
type Client struct {
	sdk   *pubsub.Client
	topic string
	pub   *pubsub.Publisher
}

// Enabled reports whether a project and a topic are configured.
func Enabled(gcp config.GCPConfig, cfg config.PubSubConfig) bool {
	return strings.TrimSpace(gcp.ProjectID) != "" && strings.TrimSpace(cfg.DomainTopic) != ""
}

// NewClient connects and fails fast when the domain topic is missing; topics
// are provisioned by infrastructure, never created here.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	topic := TopicResourceName(gcp.ProjectID, cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("pubsub: project id and domain topic are required")
	}
	sdk, err := pubsub.NewClient(ctx, strings.TrimSpace(gcp.ProjectID), clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{sdk: sdk, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = sdk.Close()
		return nil, err
	}

	c.pub = sdk.Publisher(topic)
	c.pub.PublishSettings.DelayThreshold = 50 * time.Millisecond
	c.pub.PublishSettings.CountThreshold = 100

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub.connected")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// DomainPublisher is nil on a nil client.
func (c *Client) DomainPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.pub
}

// Ping checks the topic through the admin API.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.sdk == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.sdk.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub topic %s does not exist", c.topic)
	case err != nil:
		return fmt.Errorf("pubsub topic %s: %w", c.topic, err)
	}
	return nil
}

// Close flushes buffered messages before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	if c.pub != nil {
		c.pub.Stop()
	}
	return c.sdk.Close()
}

// TopicResourceName expands a bare topic id to projects/<p>/topics/<id>.
// Full resource names pass through.
func TopicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + name
}
