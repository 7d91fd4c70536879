package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baiirun/treelist/internal/api"
	"github.com/baiirun/treelist/internal/model"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the backend tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err := a.Backend.Setup(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s backend\n", cfg.Backend)
		return nil
	},
}

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Manage owner records",
}

var ownerAddCmd = &cobra.Command{
	Use:   "add <type> <id>",
	Short: "Register an owner record lists can be attached to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		label, _ := cmd.Flags().GetString("label")
		owner := model.Owner{Type: args[0], ID: args[1]}
		if err := a.Backend.RegisterOwner(cmd.Context(), owner, label); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered owner %s\n", owner)
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Print the list in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, api.OpIndex, nil)
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the list as a nested tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(cmd, api.OpTree, nil)
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Validate placement and print a draft item without saving it",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := placementPayload(cmd)
		if err != nil {
			return err
		}
		return runOp(cmd, api.OpCreate, payload)
	},
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Add an item at the end of its siblings",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := placementPayload(cmd)
		if err != nil {
			return err
		}
		return runOp(cmd, api.OpStore, payload)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the attributes of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := itemPayload(cmd, args[0])
		if err != nil {
			return err
		}
		return runOp(cmd, api.OpUpdate, payload)
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <id>",
	Short: "Delete an item, applying the field's delete policy to its children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := itemPayload(cmd, args[0])
		if err != nil {
			return err
		}
		return runOp(cmd, api.OpDestroy, payload)
	},
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Apply a reorder batch atomically",
	Long: `Apply a reorder batch. --items is a JSON array of
{"id": N, "order_column": N, "parent_id": N|null}; an entry without parent_id
keeps its parent. Either every entry is applied or none is.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("items")
		var items any
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return fmt.Errorf("invalid --items: %w", err)
		}
		return runOp(cmd, api.OpOrder, map[string]any{"items": items})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the nested tree of a list to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		idx, err := a.Engine.Tree(cmd.Context(), scopeOf(cmd))
		if err != nil {
			return err
		}
		if err := exportTree(args[0], idx.Nested()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", idx.Len(), args[0])
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the list API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           a.Service.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		a.Logger.Info("listening", "addr", cfg.Listen, "backend", cfg.Backend)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func addScopeFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().String("owner-type", "", "owner record type (required)")
		c.Flags().String("owner-id", "", "owner record id (required)")
		c.Flags().String("field", "", "list field id (required)")
		_ = c.MarkFlagRequired("owner-type")
		_ = c.MarkFlagRequired("owner-id")
		_ = c.MarkFlagRequired("field")
	}
}

func scopeOf(cmd *cobra.Command) model.Scope {
	ownerType, _ := cmd.Flags().GetString("owner-type")
	ownerID, _ := cmd.Flags().GetString("owner-id")
	fieldID, _ := cmd.Flags().GetString("field")
	return model.Scope{Owner: model.Owner{Type: ownerType, ID: ownerID}, FieldID: fieldID}
}

// dataPayload decodes --data, an attribute object.
func dataPayload(cmd *cobra.Command) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString("data")
	payload := map[string]any{}
	if raw == "" {
		return payload, nil
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("invalid --data: %w", err)
	}
	return payload, nil
}

func placementPayload(cmd *cobra.Command) (map[string]any, error) {
	payload, err := dataPayload(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("parent") {
		parent, _ := cmd.Flags().GetInt64("parent")
		payload["parent_id"] = parent
	}
	if formType, _ := cmd.Flags().GetString("form-type"); formType != "" {
		payload["form_type"] = formType
	}
	return payload, nil
}

func itemPayload(cmd *cobra.Command, arg string) (map[string]any, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid item id %q", arg)
	}
	payload, err := dataPayload(cmd)
	if err != nil {
		return nil, err
	}
	payload["list_item_id"] = id
	return payload, nil
}

func runOp(cmd *cobra.Command, op string, payload map[string]any) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	scope := scopeOf(cmd)
	return execute(cmd.Context(), cmd.OutOrStdout(), a.Service, api.Request{
		Op:        op,
		OwnerType: scope.Owner.Type,
		OwnerID:   scope.Owner.ID,
		FieldID:   scope.FieldID,
		Payload:   payload,
	})
}

func init() {
	ownerAddCmd.Flags().String("label", "", "display label")
	ownerCmd.AddCommand(ownerAddCmd)

	addScopeFlags(indexCmd, treeCmd, createCmd, storeCmd, updateCmd, destroyCmd, orderCmd, exportCmd)

	for _, c := range []*cobra.Command{createCmd, storeCmd} {
		c.Flags().Int64("parent", 0, "parent item id (0 for the top level)")
		c.Flags().String("form-type", "", "form variant (default "+model.DefaultFormVariant+")")
	}
	for _, c := range []*cobra.Command{storeCmd, updateCmd} {
		c.Flags().String("data", "", "attributes as a JSON object")
	}
	orderCmd.Flags().String("items", "", "reorder batch as a JSON array")
	_ = orderCmd.MarkFlagRequired("items")

	serveCmd.Flags().String("listen", ":8080", "listen address")
	_ = v.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}
