// Package connectors defines the contract for optional chat-platform
// listeners that feed the expansion pipeline outside the webhook.
package connectors

import "context"

type Connector interface {
	Name() string
	Start(ctx context.Context) error
}
