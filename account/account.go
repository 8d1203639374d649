// Package account registers users and reads their profiles.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
	"github.com/klipach/dapper/log"
)

const (
	errorMsgLogField = "errorMsg"
	userIDLogField   = "userID"
	pathLogField     = "path"
)

// Images names the profile image assets.
type Images struct {
	// DefaultPath is the blob used when the user has no picture.
	DefaultPath string
	// FallbackURL is stored when no blob URL can be resolved.
	FallbackURL string
}

// Accounts creates and reads user accounts.
type Accounts struct {
	svc    *backend.Service
	images Images
}

func New(svc *backend.Service, images Images) *Accounts {
	return &Accounts{svc: svc, images: images}
}

// Created is the outcome of CreateAccount. AssetErr is set when the
// profile image could not be stored or resolved; the account exists anyway.
type Created struct {
	UID             string
	ProfileImageURL string
	AssetErr        error
}

// Status is the line shown after registration.
func (c Created) Status() string {
	status := "Successfully created user: " + c.UID
	if c.AssetErr != nil {
		status += " (" + backend.Status(c.AssetErr) + ")"
	}
	return status
}

// CreateAccount signs up and stores users/{uid}. image is optional; when it
// is missing or unusable the default profile image is used.
func (a *Accounts) CreateAccount(ctx context.Context, email, password string, image []byte) (Created, error) {
	uid, err := a.svc.Identity.SignUp(ctx, email, password)
	if err != nil {
		return Created{}, err
	}
	logger := log.LoggerFromContext(ctx).With(slog.String(userIDLogField, uid))
	logger.Info("user created")

	created := Created{UID: uid}
	created.ProfileImageURL, created.AssetErr = a.profileImageURL(ctx, uid, image)
	if created.AssetErr != nil {
		logger.Warn("error while storing profile image", slog.String(errorMsgLogField, created.AssetErr.Error()))
	}

	user := contract.User{UID: uid, Email: email, ProfileImageURL: created.ProfileImageURL}
	path := backend.UserPath(uid)
	if err := a.svc.Documents.Set(ctx, path, user); err != nil {
		return created, &backend.WriteError{Op: "save user information", Path: path, Err: err}
	}
	return created, nil
}

// profileImageURL uploads image to {uid} when given, then falls back to the
// default blob and finally to the configured URL. Every failure on the way
// is returned as an *backend.AssetError alongside the URL that was chosen.
func (a *Accounts) profileImageURL(ctx context.Context, uid string, image []byte) (string, error) {
	var errs []error
	if len(image) > 0 {
		url, err := a.uploadImage(ctx, uid, image)
		if err == nil {
			return url, nil
		}
		errs = append(errs, err)
	}
	url, err := a.svc.Blobs.DownloadURL(ctx, a.images.DefaultPath)
	if err == nil {
		return url, errors.Join(errs...)
	}
	errs = append(errs, &backend.AssetError{Path: a.images.DefaultPath, Err: err})
	return a.images.FallbackURL, errors.Join(errs...)
}

func (a *Accounts) uploadImage(ctx context.Context, uid string, image []byte) (string, error) {
	if err := a.svc.Blobs.Upload(ctx, uid, image); err != nil {
		return "", &backend.AssetError{Path: uid, Err: err}
	}
	url, err := a.svc.Blobs.DownloadURL(ctx, uid)
	if err != nil {
		return "", &backend.AssetError{Path: uid, Err: err}
	}
	return url, nil
}

func (a *Accounts) SignIn(ctx context.Context, email, password string) (string, error) {
	uid, err := a.svc.Identity.SignIn(ctx, email, password)
	if err != nil {
		return "", err
	}
	log.LoggerFromContext(ctx).Info("user logged in", slog.String(userIDLogField, uid))
	return uid, nil
}

func (a *Accounts) SignOut(ctx context.Context) error {
	if err := a.svc.Identity.SignOut(ctx); err != nil {
		return &backend.AuthError{Op: "sign out", Err: err}
	}
	return nil
}

// CurrentUser reads the profile of the signed-in user.
func (a *Accounts) CurrentUser(ctx context.Context) (contract.User, error) {
	uid, ok := a.svc.Identity.CurrentUserID()
	if !ok {
		return contract.User{}, &backend.AuthError{Op: "find firebase UID", Err: backend.ErrNotSignedIn}
	}
	return a.User(ctx, uid)
}

// User reads users/{uid}.
func (a *Accounts) User(ctx context.Context, uid string) (contract.User, error) {
	var u contract.User
	path := backend.UserPath(uid)
	doc, err := a.svc.Documents.Get(ctx, path)
	if err != nil {
		return u, fmt.Errorf("failed to fetch current user: %w", err)
	}
	if err := doc.DataTo(&u); err != nil {
		return u, fmt.Errorf("failed to decode user %s: %w", uid, err)
	}
	if u.UID == "" {
		u.UID = doc.ID()
	}
	return u, nil
}

// ListUsers returns every registered user except excludeUID, for picking
// a conversation partner.
func (a *Accounts) ListUsers(ctx context.Context, excludeUID string) ([]contract.User, error) {
	logger := log.LoggerFromContext(ctx)
	docs, err := a.svc.Documents.List(ctx, backend.UsersCollection, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	users := make([]contract.User, 0, len(docs))
	for _, doc := range docs {
		var u contract.User
		if err := doc.DataTo(&u); err != nil {
			logger.Error("error while decoding user",
				slog.String(pathLogField, backend.UserPath(doc.ID())),
				slog.String(errorMsgLogField, err.Error()),
			)
			continue
		}
		if u.UID == "" {
			u.UID = doc.ID()
		}
		if u.UID == excludeUID {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}
