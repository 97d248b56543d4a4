/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Channel and Message Business Logic Errors
	ErrChannelNotFound:       {Code: ErrChannelNotFound, Message: "Channel not found.", Status: http.StatusNotFound},
	ErrServerNotFound:        {Code: ErrServerNotFound, Message: "No chat server found for this company.", Status: http.StatusNotFound},
	ErrMessageNotFound:       {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrParentNotInChannel:    {Code: ErrParentNotInChannel, Message: "Parent message not found or not in this channel.", Status: http.StatusBadRequest},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message content is required.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrPresenceStatusInvalid: {Code: ErrPresenceStatusInvalid, Message: "Valid status is required.", Status: http.StatusBadRequest},
	ErrAttachmentInvalid:     {Code: ErrAttachmentInvalid, Message: "Invalid attachment: %s.", Status: http.StatusBadRequest},

	// 3xxx: Identity and Authorization Errors
	ErrAuthTokenMissing:    {Code: ErrAuthTokenMissing, Message: "Authentication token not provided.", Status: http.StatusUnauthorized},
	ErrAuthTokenInvalid:    {Code: ErrAuthTokenInvalid, Message: "Invalid or expired authentication token.", Status: http.StatusUnauthorized},
	ErrAuthUserNotFound:    {Code: ErrAuthUserNotFound, Message: "Account not found.", Status: http.StatusUnauthorized},
	ErrAuthAccountInactive: {Code: ErrAuthAccountInactive, Message: "Account is not active.", Status: http.StatusUnauthorized},
	ErrNotAuthorized:       {Code: ErrNotAuthorized, Message: "You do not have access to this channel.", Status: http.StatusForbidden},
	ErrNotCompanyMember:    {Code: ErrNotCompanyMember, Message: "User is not associated with a company.", Status: http.StatusBadRequest},

	// 5xxx: Internal System Errors
	ErrUnknown:     {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrPersistence: {Code: ErrPersistence, Message: "Failed to save your message. Please try again.", Status: http.StatusInternalServerError},
	ErrStorage:     {Code: ErrStorage, Message: "File operation failed. Please try again.", Status: http.StatusInternalServerError},
}
