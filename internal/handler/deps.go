package handler

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"propchat/internal/app/chat"
	"propchat/internal/app/identity"
	"propchat/internal/app/storage"
	"propchat/internal/app/store"
	"propchat/internal/configs"
	"propchat/internal/pkg/metrics"
)

// ChatStore is the persistence surface the HTTP handlers depend on.
// *store.Store implements it against Postgres.
type ChatStore interface {
	GetAccount(ctx context.Context, userID string) (store.Account, error)
	GetServerByCompany(ctx context.Context, companyID string) (store.Server, error)
	GetChannel(ctx context.Context, channelID string) (store.Channel, error)
	ListChannels(ctx context.Context, serverID, userID string) ([]store.Channel, error)
	ListUserRoles(ctx context.Context, serverID, userID string) ([]store.Role, error)
	ListMembers(ctx context.Context, companyID string) ([]store.Member, error)
	HasManageMessages(ctx context.Context, serverID, userID string) (bool, error)
	InsertMessage(ctx context.Context, channelID, userID, content string, parentID *string, attachments []store.NewAttachment) (store.Message, error)
	GetMessage(ctx context.Context, messageID string) (store.Message, error)
	UpdateMessage(ctx context.Context, messageID, content string) (store.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	ParentInChannel(ctx context.Context, parentID, channelID string) (bool, error)
	ListMessages(ctx context.Context, channelID string, limit int, before *string) ([]store.Message, error)
	UpsertReadReceipt(ctx context.Context, channelID, userID, messageID string) error
}

type AppDeps struct {
	Hub            *chat.Hub
	Config         *configs.AppConfig
	Store          ChatStore
	StorageService storage.StorageService
	Resolver       identity.Resolver
	Authorizer     chat.Authorizer
	Metrics        metrics.Recorder
	Registry       *prometheus.Registry
}
