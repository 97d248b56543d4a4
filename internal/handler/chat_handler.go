/*
Package handler provides HTTP handler functions for the company chat REST surface.

Durable writes (sending, editing and deleting messages) happen here, over HTTP.
Each write follows the same two-phase order: the row is persisted first, and only
after the write succeeds is the corresponding event announced to connected clients.
A failed write announces nothing.
*/
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"propchat/internal/app/chat"
	"propchat/internal/app/store"
	"propchat/internal/app/user"
	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/req"
	"propchat/internal/pkg/resp"
)

const (
	// MaxMessageContentLength is the maximum accepted message body length in runes.
	MaxMessageContentLength = 4000

	// DefaultMessagePageSize is the page size used when the client does not ask for one.
	DefaultMessagePageSize = 50

	// MaxMessagePageSize caps the page size a client may request.
	MaxMessagePageSize = 100
)

// currentUser loads the authenticated account behind the request's bearer token.
// It mirrors the checks the WebSocket resolver applies at connect time.
func currentUser(deps *AppDeps, r *http.Request) (user.User, *errs.CustomError) {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		return user.User{}, errs.NewError(errs.ErrAuthTokenMissing)
	}

	account, err := deps.Store.GetAccount(r.Context(), payload.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return user.User{}, errs.NewError(errs.ErrAuthUserNotFound)
		}
		logx.Error(err, "Failed to load account for request", "user_id", payload.ID)
		return user.User{}, errs.NewError(errs.ErrPersistence)
	}

	if account.Status != "active" {
		return user.User{}, errs.NewError(errs.ErrAuthAccountInactive)
	}

	return account.User, nil
}

// HandleGetServer returns the caller's company chat server together with the
// channels visible to them, the member roster and the caller's roles.
func HandleGetServer(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if u.CompanyID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotCompanyMember))
			return
		}

		server, err := deps.Store.GetServerByCompany(r.Context(), u.CompanyID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrServerNotFound))
				return
			}
			logx.Error(err, "Failed to load chat server", "company_id", u.CompanyID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		channels, err := deps.Store.ListChannels(r.Context(), server.ID, u.ID)
		if err != nil {
			logx.Error(err, "Failed to list channels", "server_id", server.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		members, err := deps.Store.ListMembers(r.Context(), u.CompanyID)
		if err != nil {
			logx.Error(err, "Failed to list members", "company_id", u.CompanyID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		roles, err := deps.Store.ListUserRoles(r.Context(), server.ID, u.ID)
		if err != nil {
			logx.Error(err, "Failed to list user roles", "server_id", server.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		data := map[string]any{
			"server":   server,
			"channels": channels,
			"members":  members,
			"roles":    roles,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleListMessages returns a page of channel history in chronological order.
// Fetching the newest page also records a read receipt for the latest message.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		channelID := chi.URLParam(r, "channelID")
		if customErr := deps.Authorizer.CanSubscribe(r.Context(), channelID, u); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		limit := DefaultMessagePageSize
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			if parsed > MaxMessagePageSize {
				parsed = MaxMessagePageSize
			}
			limit = parsed
		}

		var before *string
		if raw := r.URL.Query().Get("before"); raw != "" {
			before = &raw
		}

		messages, err := deps.Store.ListMessages(r.Context(), channelID, limit, before)
		if err != nil {
			logx.Error(err, "Failed to list messages", "channel_id", channelID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		if before == nil && len(messages) > 0 {
			latest := messages[len(messages)-1]
			if err := deps.Store.UpsertReadReceipt(r.Context(), channelID, u.ID, latest.ID); err != nil {
				logx.Warn("Failed to record read receipt", "channel_id", channelID, "user_id", u.ID)
			}
		}

		data := map[string]any{
			"messages": messages,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// SendMessageInput defines the JSON input structure for posting a message.
type SendMessageInput struct {
	Content     string                   `json:"content"`
	ParentID    *string                  `json:"parentId,omitempty"`
	Attachments []MessageAttachmentInput `json:"attachments,omitempty"`
}

// MessageAttachmentInput references a file previously uploaded through the
// presign endpoint, to be attached to the message being posted.
type MessageAttachmentInput struct {
	FileKey  string `json:"fileKey"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// MaxAttachmentsPerMessage caps the number of files a single message may carry.
const MaxAttachmentsPerMessage = 5

// validateAttachments checks every attachment reference and requires its key to
// live under the channel's prefix, so a message can never link a file from a
// channel the author may not read.
func validateAttachments(channelID string, inputs []MessageAttachmentInput) ([]store.NewAttachment, *errs.CustomError) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if len(inputs) > MaxAttachmentsPerMessage {
		return nil, errs.NewError(errs.ErrAttachmentInvalid, "too many attachments")
	}

	attachments := make([]store.NewAttachment, 0, len(inputs))
	for _, in := range inputs {
		if customErr := chat.ValidateAttachmentSize(in.FileSize); customErr != nil {
			return nil, customErr
		}
		if customErr := chat.ValidateAttachmentType(in.FileName, in.MimeType); customErr != nil {
			return nil, customErr
		}
		if !strings.HasPrefix(in.FileKey, channelID+"/") {
			return nil, errs.NewError(errs.ErrAttachmentInvalid, "file key does not belong to this channel")
		}

		attachments = append(attachments, store.NewAttachment{
			FileName: in.FileName,
			FileType: in.MimeType,
			FileSize: in.FileSize,
			FileKey:  in.FileKey,
		})
	}
	return attachments, nil
}

func validateContent(content string) *errs.CustomError {
	if strings.TrimSpace(content) == "" {
		return errs.NewError(errs.ErrMessageContentEmpty)
	}
	if len([]rune(content)) > MaxMessageContentLength {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}
	return nil
}

// HandleSendMessage persists a new message and announces it to the channel.
// The announcement happens only after the row is durable; a failed insert
// produces an error response and no event.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		channelID := chi.URLParam(r, "channelID")
		if customErr := deps.Authorizer.CanSubscribe(r.Context(), channelID, u); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		attachments, customErr := validateAttachments(channelID, input.Attachments)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// A message may be attachment-only; text is validated when present.
		if strings.TrimSpace(input.Content) == "" && len(attachments) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentEmpty))
			return
		}
		if strings.TrimSpace(input.Content) != "" {
			if customErr := validateContent(input.Content); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
		}

		if input.ParentID != nil {
			ok, err := deps.Store.ParentInChannel(r.Context(), *input.ParentID, channelID)
			if err != nil {
				logx.Error(err, "Failed to check parent message", "parent_id", *input.ParentID)
				resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
				return
			}
			if !ok {
				resp.RespondError(w, r, errs.NewError(errs.ErrParentNotInChannel))
				return
			}
		}

		m, err := deps.Store.InsertMessage(r.Context(), channelID, u.ID, input.Content, input.ParentID, attachments)
		if err != nil {
			deps.Metrics.PersistenceFailure("insert_message")
			logx.Error(err, "Failed to insert message", "channel_id", channelID, "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		deps.Hub.AnnounceMessage(m)

		resp.RespondCreated(w, r, m)
	}
}

// EditMessageInput defines the JSON input structure for editing a message.
type EditMessageInput struct {
	Content string `json:"content"`
}

// canModify reports whether u may edit or delete m: the author always can,
// anyone else needs a server role carrying the manage_messages permission.
func canModify(deps *AppDeps, r *http.Request, u user.User, m store.Message) *errs.CustomError {
	if m.Author.ID == u.ID {
		return nil
	}

	ch, err := deps.Store.GetChannel(r.Context(), m.ChannelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NewError(errs.ErrChannelNotFound)
		}
		logx.Error(err, "Failed to load channel for permission check", "channel_id", m.ChannelID)
		return errs.NewError(errs.ErrPersistence)
	}

	ok, err := deps.Store.HasManageMessages(r.Context(), ch.ServerID, u.ID)
	if err != nil {
		logx.Error(err, "Failed to check manage_messages permission", "server_id", ch.ServerID, "user_id", u.ID)
		return errs.NewError(errs.ErrPersistence)
	}
	if !ok {
		return errs.NewError(errs.ErrNotAuthorized)
	}
	return nil
}

// HandleEditMessage updates a message's content and announces the edit.
func HandleEditMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messageID := chi.URLParam(r, "messageID")

		m, err := deps.Store.GetMessage(r.Context(), messageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound))
				return
			}
			logx.Error(err, "Failed to load message", "message_id", messageID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		if customErr := deps.Authorizer.CanSubscribe(r.Context(), m.ChannelID, u); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := canModify(deps, r, u, m); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input EditMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := validateContent(input.Content); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		updated, err := deps.Store.UpdateMessage(r.Context(), messageID, input.Content)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound))
				return
			}
			deps.Metrics.PersistenceFailure("update_message")
			logx.Error(err, "Failed to update message", "message_id", messageID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		deps.Hub.AnnounceMessageUpdate(updated)

		resp.RespondSuccess(w, r, updated)
	}
}

// HandleDeleteMessage removes a message and announces the deletion. Direct
// replies to the deleted message survive as top-level messages.
func HandleDeleteMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messageID := chi.URLParam(r, "messageID")

		m, err := deps.Store.GetMessage(r.Context(), messageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound))
				return
			}
			logx.Error(err, "Failed to load message", "message_id", messageID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		if customErr := deps.Authorizer.CanSubscribe(r.Context(), m.ChannelID, u); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := canModify(deps, r, u, m); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Store.DeleteMessage(r.Context(), messageID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound))
				return
			}
			deps.Metrics.PersistenceFailure("delete_message")
			logx.Error(err, "Failed to delete message", "message_id", messageID)
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistence))
			return
		}

		deps.Hub.AnnounceMessageDelete(m.ChannelID, messageID)

		// Attachment blobs are cleaned up best-effort after the durable delete;
		// a failed cleanup leaves an orphan object, never a dangling row.
		for _, a := range m.Attachments {
			if err := deps.StorageService.Delete(r.Context(), a.FileKey); err != nil {
				logx.Warn("Failed to delete attachment object", "file_key", a.FileKey)
			}
		}

		data := map[string]any{
			"id": messageID,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// UpdatePresenceInput defines the JSON input structure for a presence change.
type UpdatePresenceInput struct {
	Status string `json:"status"`
}

// HandleUpdatePresence applies a manual presence change over HTTP. The same
// derivation rules apply as on the socket: a user with no live connections
// cannot claim online.
func HandleUpdatePresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input UpdatePresenceInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		status := chat.Status(input.Status)
		if customErr := deps.Hub.UpdatePresence(u, status); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		data := map[string]any{
			"status": string(deps.Hub.Presence().Status(u.ID)),
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleLogout ends the caller's chat session: every live connection of the
// user is closed and their presence record, including any sticky status
// override, is dropped. Clients call this as part of the platform logout flow.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Hub.Logout(u)

		resp.RespondSuccess(w, r, map[string]any{"status": string(chat.StatusOffline)})
	}
}
