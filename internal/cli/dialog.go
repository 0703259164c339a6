package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/breaklinks/internal/dialog"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

func (a *app) newDialogCmd() *cobra.Command {
	var ignoreClones bool
	cmd := &cobra.Command{
		Use:   "dialog <id|list>...",
		Short: "Decide interactively what happens to the links to items about to be deleted",
		Long: "Walk through the breaking-links dialog: remove the links, repoint them at\n" +
			"another item, or leave them broken. Prints the dialog result and exits 0 on\n" +
			"\"yes\" and 3 on \"no\".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := a.driveDialog(ctx, a.progressWriter(cmd), a.controller(s, targets, ignoreClones))
			if err != nil {
				return err
			}
			return a.reportResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&ignoreClones, "ignore-clones", false, "leave links held by clone-source fields")
	return cmd
}

// progressWriter is where dialog progress goes: stdout, or stderr when
// stdout carries JSON.
func (a *app) progressWriter(cmd *cobra.Command) io.Writer {
	if a.flags.jsonMode {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func (a *app) reportResult(out io.Writer, result string) error {
	if a.flags.jsonMode {
		if err := json.NewEncoder(out).Encode(map[string]string{"result": result}); err != nil {
			return sysError(err)
		}
	} else {
		fmt.Fprintln(out, result)
	}
	if result != dialog.ResultYes {
		return &exitError{code: exitDialogNo}
	}
	return nil
}

// driveDialog feeds prompts into ctrl until it closes and returns the result.
func (a *app) driveDialog(ctx context.Context, out io.Writer, ctrl *dialog.Controller) (string, error) {
	items, err := ctrl.ItemsToDelete(ctx)
	if err != nil {
		return "", sysError(err)
	}
	printItemsToDelete(out, items)

	var action dialog.Action
	for {
		v := ctrl.View()
		if v.Closed {
			return v.Result, nil
		}

		switch v.Page {
		case dialog.PageAction:
			chosen, err := a.prompt.ChooseAction()
			if aborted(err) {
				ctrl.Cancel()
				continue
			}
			if err != nil {
				return "", sysError(err)
			}
			action = chosen
			if _, err := ctrl.OK(ctx, action); err != nil {
				return "", dialogError(err)
			}

		case dialog.PageItem:
			id, err := a.prompt.ReplacementID()
			if aborted(err) {
				ctrl.Cancel()
				continue
			}
			if err != nil {
				return "", sysError(err)
			}
			if id == "" {
				if _, err := ctrl.Back(); err != nil {
					return "", dialogError(err)
				}
				continue
			}
			if err := ctrl.SelectReplacement(ctx, id); err != nil {
				if !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrInvalidID) {
					return "", sysError(err)
				}
				fmt.Fprintln(out, warnStyle.Render(err.Error()))
				continue
			}
			v, err := ctrl.OK(ctx, dialog.ActionRelink)
			if err != nil {
				return "", dialogError(err)
			}
			if v.Alert != "" {
				fmt.Fprintln(out, warnStyle.Render(v.Alert))
			}

		case dialog.PageLinksBrokenOrRemoved:
			ok, err := a.prompt.Confirm(v.ImpactText, "")
			if aborted(err) {
				ctrl.Cancel()
				continue
			}
			if err != nil {
				return "", sysError(err)
			}
			if !ok {
				if _, err := ctrl.Back(); err != nil {
					return "", dialogError(err)
				}
				continue
			}
			if _, err := ctrl.OK(ctx, action); err != nil {
				return "", dialogError(err)
			}

		case dialog.PageExecuting:
			last := ""
			_, err := ctrl.Await(ctx, func(v dialog.View) {
				if v.StatusText != "" && v.StatusText != last {
					last = v.StatusText
					fmt.Fprintln(out, mutedStyle.Render(strings.TrimSpace(v.StatusText)))
				}
			})
			if ctx.Err() != nil {
				ctrl.Cancel()
				return "", sysError(ctx.Err())
			}
			if err != nil {
				return "", sysError(err)
			}

		case dialog.PageFailed:
			fmt.Fprintln(out, failStyle.Render("The operation failed:"))
			fmt.Fprintln(out, v.ErrorText)
			ctrl.Cancel()
			return "", sysError(fmt.Errorf("remediation failed: %s", strings.ReplaceAll(v.ErrorText, "\n", "; ")))
		}
	}
}

// dialogError maps controller errors to exit codes. A missing target is the
// user's mistake; anything else is a contract violation.
func dialogError(err error) error {
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidID) {
		return userError(err)
	}
	return sysError(err)
}

func printItemsToDelete(out io.Writer, items []dialog.ItemSummary) {
	if len(items) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Items to be deleted"))
	for _, it := range items {
		b.WriteString("\n")
		if it.Icon != "" {
			b.WriteString(mutedStyle.Render("["+it.Icon+"]") + " ")
		}
		b.WriteString(it.DisplayName + "  " + mutedStyle.Render(it.Path))
	}
	fmt.Fprintln(out, itemBoxStyle.Render(b.String()))
}
