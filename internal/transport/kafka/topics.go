package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"

	id "govnet/pkg/domain"
)

// EnsureTopics creates the inbound topic of every domain. Topics that
// already exist are left untouched.
func EnsureTopics(ctx context.Context, admin *kadm.Client, prefix string, partitions int32, replication int16, domains ...id.Domain) error {
	if len(domains) == 0 {
		return nil
	}
	topics := make([]string, 0, len(domains))
	for _, d := range domains {
		topics = append(topics, TopicFor(prefix, d))
	}

	responses, err := admin.CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	var errs []error
	for _, topic := range topics {
		resp, ok := responses[topic]
		if !ok {
			errs = append(errs, fmt.Errorf("topic %s: no response", topic))
			continue
		}
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			errs = append(errs, fmt.Errorf("topic %s: %w", topic, resp.Err))
		}
	}
	return errors.Join(errs...)
}
