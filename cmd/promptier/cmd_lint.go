package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DeanShandler123/promptier/internal/lint"
	"github.com/DeanShandler123/promptier/internal/logging"
)

var lintWatch bool

// debounceWindow coalesces bursts of filesystem events (editors often fire
// several writes per save) into a single re-lint.
const debounceWindow = 300 * time.Millisecond

var lintCmd = &cobra.Command{
	Use:   "lint <prompt-file>",
	Short: "Run the rule registry over a prompt file",
	Long: `Lint renders the prompt with an empty context and checks the result
against the built-in rules plus any configuration in the file's lint block.
The command exits non-zero when any finding lands in the error bucket.

With --watch the file and its fragments directory are re-linted on change.`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVarP(&lintWatch, "watch", "w", false, "re-lint whenever the prompt file or its fragments change")
}

func runLint(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !lintWatch {
		passed, err := lintOnce(cmd.Context(), path)
		if err != nil {
			return err
		}
		if !passed {
			os.Exit(1)
		}
		return nil
	}
	return watchAndLint(cmd.Context(), path)
}

// lintOnce loads, lints, and reports one pass. The boolean is false when the
// result has findings in the error bucket.
func lintOnce(ctx context.Context, path string) (bool, error) {
	p, pf, err := loadPromptFile(path)
	if err != nil {
		return false, err
	}

	engine := lint.NewEngine(lint.WithConfig(lintConfig(pf)))
	result, err := engine.Lint(ctx, p)
	if err != nil {
		return false, err
	}

	fmt.Print(renderReport(result))
	return result.Passed, nil
}

// watchAndLint runs an initial pass, then re-lints on filesystem changes
// until the context is canceled (Ctrl-C).
func watchAndLint(ctx context.Context, path string) error {
	log := logging.Get(logging.CategoryLint)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the containing directory rather than the file itself: editors
	// that save via rename would otherwise drop the watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if fragDir := fragmentsDirOf(path); fragDir != "" {
		if err := watcher.Add(fragDir); err != nil {
			log.Warn("cannot watch fragments dir %s: %v", fragDir, err)
		}
	}

	if _, err := lintOnce(ctx, path); err != nil {
		log.Error("lint failed: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var debounce *time.Timer
		relint := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				log.Debug("change detected: %s", event.Name)
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceWindow, func() {
					select {
					case relint <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Warn("watcher error: %v", err)
			case <-relint:
				fmt.Printf("\n--- %s ---\n", time.Now().Format("15:04:05"))
				if _, err := lintOnce(ctx, path); err != nil {
					log.Error("lint failed: %v", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// fragmentsDirOf extracts the resolved fragments_dir from the prompt file,
// best effort. Load failures are ignored here; the lint pass reports them.
func fragmentsDirOf(path string) string {
	_, pf, err := loadPromptFile(path)
	if err != nil || pf.FragmentsDir == "" {
		return ""
	}
	if filepath.IsAbs(pf.FragmentsDir) {
		return pf.FragmentsDir
	}
	return filepath.Join(filepath.Dir(path), pf.FragmentsDir)
}
