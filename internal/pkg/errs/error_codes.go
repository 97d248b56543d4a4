/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Channel and Message Business Logic Errors
const (
	// ErrChannelNotFound indicates that the requested channel does not exist.
	ErrChannelNotFound = 2101

	// ErrServerNotFound indicates that no chat server exists for the user's company.
	ErrServerNotFound = 2102

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = 2103

	// ErrParentNotInChannel indicates that a reply references a parent message that
	// does not exist or lives in a different channel.
	ErrParentNotInChannel = 2104

	// ErrMessageContentEmpty indicates that a message was submitted without content.
	ErrMessageContentEmpty = 2201

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrPresenceStatusInvalid indicates that a presence update carried an unknown status value.
	ErrPresenceStatusInvalid = 2301

	// ErrAttachmentInvalid indicates that an attachment failed type, size or key validation.
	ErrAttachmentInvalid = 2401
)

// 3xxx: Identity and Authorization Errors
const (
	// ErrAuthTokenMissing indicates that no bearer token was presented at connect time.
	ErrAuthTokenMissing = 3001

	// ErrAuthTokenInvalid indicates that the presented token failed signature or expiry validation.
	ErrAuthTokenInvalid = 3002

	// ErrAuthUserNotFound indicates that the token subject does not resolve to a known user.
	ErrAuthUserNotFound = 3003

	// ErrAuthAccountInactive indicates that the resolved user account is not active.
	ErrAuthAccountInactive = 3004

	// ErrNotAuthorized indicates a valid identity with insufficient channel membership.
	// The operation is refused but the connection stays alive.
	ErrNotAuthorized = 3101

	// ErrNotCompanyMember indicates that the user is not associated with a company.
	ErrNotCompanyMember = 3102
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrPersistence indicates that a durable write failed. It is reported to the
	// requesting connection only; no event is ever published for the operation.
	ErrPersistence = 5001

	// ErrStorage indicates that the attachment storage backend rejected an operation.
	ErrStorage = 5002
)
