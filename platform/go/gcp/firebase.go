package gcp

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// CredentialsPathEnv optionally points at a service-account JSON file for
// local development. When unset the app relies on ambient credentials.
const CredentialsPathEnv = "FIREBASE_CONFIG"

// NewApp creates a Firebase App instance, honoring CredentialsPathEnv when set.
func NewApp(ctx context.Context) (*firebase.App, error) {
	if path, found := os.LookupEnv(CredentialsPathEnv); found && path != "" {
		return firebase.NewApp(ctx, nil, option.WithCredentialsFile(path))
	}
	return firebase.NewApp(ctx, nil)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
// Only Auth is used in this project; no Firestore client is created.
func InitFirebaseAuth(ctx context.Context) (*firebase.App, *firebaseauth.Client, error) {
	firebaseApp, err := NewApp(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	fbAuth, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase auth [%w]", err)
	}

	return firebaseApp, fbAuth, nil
}
