// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package objectstore implements the §6.4 attachment object store
// contract: given a {bucket, key} it downloads the object's bytes,
// filename and content-type. Adapted from a richer GCS media client in
// the example pack; upload, thumbnailing and watermarking are out of
// scope here since this deployment only ever reads attachments that
// templates or upstream services already placed in the bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Object is a downloaded attachment, ready to be embedded in a MIME
// message by internal/sender.
type Object struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// Store downloads attachments from Google Cloud Storage.
type Store struct {
	client *storage.Client
}

// New dials GCS. An empty credentialsJSON uses the ambient environment
// credentials (workload identity / ADC).
func New(ctx context.Context, credentialsJSON string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Store{client: client}, nil
}

// Download fetches bucket/key in full. A missing object surfaces as a
// plain error: the caller (sender, §4.E) treats any attachment failure as
// a send error rather than silently dropping the attachment.
func (s *Store) Download(ctx context.Context, bucket, key string) (*Object, error) {
	reader, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s/%s: %w", bucket, key, err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}

	contentType := reader.Attrs.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(key))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Object{
		Filename:    filepath.Base(key),
		ContentType: contentType,
		Bytes:       buf.Bytes(),
	}, nil
}

// Close releases the underlying GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}
