package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"cssscope/state"
	"cssscope/watch"
)

// Watch is the action for "watch" command. It scopes everything under source
// directory once and then keeps scoped copies up to date until interrupted.
// Outputs are always overwritten.
func Watch(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("watch")

	src, dst, err := sourceAndDestination(cmd, log)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(src); err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	} else if !fi.IsDir() {
		return fmt.Errorf("only directories could be watched (%s)", src)
	}
	if len(dst) == 0 {
		dst = src
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), true
	if suffix := cmd.String("suffix"); len(suffix) > 0 {
		if strings.ContainsAny(suffix, `/\`) {
			return fmt.Errorf("output suffix cannot contain path separators: %q", suffix)
		}
		env.Cfg.Scoping.OutputSuffix = suffix
	}
	if err := env.PrepareScoper(cmd.String("class")); err != nil {
		return err
	}

	if err := process(ctx, src, dst, scopeStylesheet, log); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		// keep watching, files may be fixed later
		log.Warn("Initial pass completed with errors", zap.Error(err))
	}

	w, err := watch.New(src, env.Cfg.Watch.Debounce, changeHandler(src, dst, log), watchFilter(env.Cfg.Scoping.OutputSuffix), log)
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("unable to start watcher: %w", err)
	}

	defer func(start time.Time) {
		st := w.Stats()
		log.Info("Watching completed",
			zap.Duration("elapsed", time.Since(start)), zap.Int("processed", st.Processed), zap.Int("errors", st.Errors))
	}(time.Now())

	select {
	case <-ctx.Done():
	case <-w.Done():
		if ctx.Err() == nil {
			return errors.New("watcher stopped unexpectedly")
		}
	}
	return nil
}

// watchFilter selects stylesheets which are not our own output.
func watchFilter(suffix string) watch.Filter {
	return func(path string) bool {
		return isStylesheet(path) && !isProduced(path, suffix)
	}
}

// changeHandler scopes single changed stylesheet under root.
func changeHandler(root, dst string, log *zap.Logger) watch.Handler {
	return func(ctx context.Context, path string) error {
		name, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			// gone before we got to it
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		s := &stylesheet{name: name, path: path}
		if err := processStylesheet(ctx, s, dst, scopeStylesheet, log); err != nil {
			return err
		}

		env := state.EnvFromContext(ctx)
		if env.Rpt != nil {
			if err := env.Rpt.StoreCopy("watch/"+filepath.ToSlash(name), buildOutputPath(name, dst, env)); err != nil {
				log.Warn("Unable to store copy of the result", zap.String("file", name), zap.Error(err))
			}
		}
		return nil
	}
}
