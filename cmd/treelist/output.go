package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/natefinch/atomic"

	"github.com/baiirun/treelist/internal/api"
	"github.com/baiirun/treelist/internal/tree"
)

// execute runs req and prints the response body as indented JSON. A failed
// request still prints its error body before returning an error.
func execute(ctx context.Context, w io.Writer, s *api.Service, req api.Request) error {
	status, body := s.Handle(ctx, "", req)
	if err := printJSON(w, body); err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("%s failed with status %d", req.Op, status)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// exportTree replaces path with the nested tree in one rename, so readers
// never see a partial file.
func exportTree(path string, nodes []tree.Node) error {
	b, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(b, '\n'))); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
