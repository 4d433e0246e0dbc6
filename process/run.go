// Package process drives stylesheet scoping for files, directories and zip
// archives.
package process

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cssscope/archive"
	"cssscope/css"
	"cssscope/state"
)

// handlerFunc does actual work on a single decoded stylesheet. "dst" is
// destination directory, it is empty when nothing is written.
type handlerFunc func(ctx context.Context, s *stylesheet, data []byte, dst string, log *zap.Logger) error

// stylesheet is a unit of work. "name" is part of the source path (always
// including file name) relative to the original path. When actual file was
// specified it will be just base file name without a path. When looking
// inside archive or directory it will be relative path inside archive or
// directory (including base file name).
type stylesheet struct {
	name    string
	path    string // file on disk, empty for archive entries
	archive string // archive the entry came from
	data    []byte // archive entries are read while archive is open
}

func (s *stylesheet) load() ([]byte, error) {
	if len(s.path) == 0 {
		return s.data, nil
	}
	return os.ReadFile(s.path)
}

func (s *stylesheet) fields() []zap.Field {
	if len(s.archive) != 0 {
		return []zap.Field{zap.String("archive", s.archive), zap.String("file", s.name)}
	}
	return []zap.Field{zap.String("file", s.name)}
}

// Run is the action for "scope" command.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("scope")

	src, dst, err := sourceAndDestination(cmd, log)
	if err != nil {
		return err
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	if suffix := cmd.String("suffix"); len(suffix) > 0 {
		if strings.ContainsAny(suffix, `/\`) {
			return fmt.Errorf("output suffix cannot contain path separators: %q", suffix)
		}
		env.Cfg.Scoping.OutputSuffix = suffix
	}
	if err := env.PrepareScoper(cmd.String("class")); err != nil {
		return err
	}

	log.Info("Processing starting",
		zap.String("source", src), zap.String("destination", dst), zap.String("class", env.Scoper.Class()))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	handle := scopeStylesheet
	if env.Rpt != nil {
		handle = withOutline(handle)
	}
	return process(ctx, src, dst, handle, log)
}

// Verify is the action for "verify" command. It does not write anything and
// fails when any selector outside of opaque at-rules is not scoped.
func Verify(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("verify")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	if err := env.PrepareScoper(cmd.String("class")); err != nil {
		return err
	}

	log.Info("Verification starting", zap.String("source", src), zap.String("class", env.Scoper.Class()))
	defer func(start time.Time) {
		log.Info("Verification completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	sheets, _, err := collect(ctx, src, "", log)
	if err != nil {
		return err
	}
	return processAll(ctx, sheets, "", verifyStylesheet, log)
}

// sourceAndDestination gets paths from command line. Destination is left
// empty when not specified, source location is used then.
func sourceAndDestination(cmd *cli.Command, log *zap.Logger) (src, dst string, err error) {
	src = cmd.Args().Get(0)
	if len(src) == 0 {
		return "", "", errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return "", "", err
	}

	dst = cmd.Args().Get(1)
	if len(dst) > 0 {
		if dst, err = filepath.Abs(dst); err != nil {
			return "", "", err
		}
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}
	return src, dst, nil
}

// process handles the core logic independently of CLI framework. It
// collects stylesheets and processes them. When "dst" is empty results go next
// to the source: into directory itself, or into directory containing archive
// or file.
func process(ctx context.Context, src, dst string, handle handlerFunc, log *zap.Logger) error {
	sheets, dst, err := collect(ctx, src, dst, log)
	if err != nil {
		return err
	}
	return processAll(ctx, sheets, dst, handle, log)
}

// collect determines the input type (directory, archive, path inside archive
// or single file) and finds stylesheets in it. Returned destination is "dst"
// or default one when "dst" is empty.
func collect(ctx context.Context, src, dst string, log *zap.Logger) (sheets []*stylesheet, _ string, err error) {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return nil, "", fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if sheets, err = collectDir(ctx, head, log); err != nil {
				return nil, "", fmt.Errorf("unable to process directory: %w", err)
			}
			if len(dst) == 0 {
				dst = head
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return nil, "", fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		if len(dst) == 0 {
			dst = filepath.Dir(head)
		}

		arc, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return nil, "", fmt.Errorf("unable to check archive type: %w", err)
		}
		if arc {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if sheets, err = collectArchive(ctx, head, tail, "", log); err != nil {
				return nil, "", fmt.Errorf("unable to process archive: %w", err)
			}
			if len(tail) != 0 && len(sheets) == 0 {
				return nil, "", fmt.Errorf("input source was not found in archive (%s) => (%s)", head, tail)
			}
			break
		}

		if isStylesheet(head) && len(tail) == 0 {
			sheets = []*stylesheet{{name: filepath.Base(head), path: head}}
			break
		}
		return nil, "", fmt.Errorf("input was not recognized as stylesheet (%s)", head)
	}
	if len(head) == 0 {
		return nil, "", fmt.Errorf("input source was not found (%s)", src)
	}
	return sheets, dst, nil
}

// processAll runs handler on all collected stylesheets in natural order of
// their names, in parallel, limited by configured number of workers. Failure
// of a single stylesheet does not stop the others, all failures are reported
// together.
func processAll(ctx context.Context, sheets []*stylesheet, dst string, handle handlerFunc, log *zap.Logger) error {
	if len(sheets) == 0 {
		log.Debug("Nothing to process")
		return nil
	}

	sort.SliceStable(sheets, func(i, j int) bool {
		return natural.Less(sheets[i].name, sheets[j].name)
	})

	env := state.EnvFromContext(ctx)

	var (
		mu   sync.Mutex
		errs error
		work = sheets
	)
	if len(dst) != 0 {
		work, errs = claimOutputs(sheets, dst, env, log)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(env.Cfg.Scoping.Workers, 1))
	for _, s := range work {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := processStylesheet(gctx, s, dst, handle, log); err != nil {
				log.Error("Unable to process stylesheet", append(s.fields(), zap.Error(err))...)
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if errs != nil {
		failed := len(multierr.Errors(errs))
		return fmt.Errorf("%d of %d stylesheets failed: %w", failed, len(sheets), errs)
	}
	return nil
}

// claimOutputs assigns output files to stylesheets in order. Stylesheet which
// output is already claimed (with "nodirs" same names from different
// directories meet) is not processed and reported as failed, so result does
// not depend on scheduling.
func claimOutputs(sheets []*stylesheet, dst string, env *state.LocalEnv, log *zap.Logger) (claimed []*stylesheet, errs error) {
	owners := make(map[string]string, len(sheets))
	claimed = make([]*stylesheet, 0, len(sheets))
	for _, s := range sheets {
		outputName := buildOutputPath(s.name, dst, env)
		if owner, ok := owners[outputName]; ok {
			err := fmt.Errorf("output file %s is already produced from %s", outputName, owner)
			log.Error("Unable to process stylesheet", append(s.fields(), zap.Error(err))...)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		owners[outputName] = s.name
		claimed = append(claimed, s)
	}
	return claimed, errs
}

// collectDir walks directory tree finding stylesheets and archives with them.
// Results of the previous runs are skipped.
func collectDir(ctx context.Context, dir string, log *zap.Logger) (sheets []*stylesheet, err error) {
	suffix := state.EnvFromContext(ctx).Cfg.Scoping.OutputSuffix

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		arc, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		name := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		if arc {
			found, err := collectArchive(ctx, path, "", filepath.Dir(name), log)
			if err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
				return nil
			}
			sheets = append(sheets, found...)
			return nil
		}

		if !isStylesheet(path) {
			log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			return nil
		}
		if isProduced(path, suffix) {
			log.Debug("Skipping file, already scoped", zap.String("file", path))
			return nil
		}

		sheets = append(sheets, &stylesheet{name: name, path: path})
		return nil
	})
	return sheets, err
}

// collectArchive walks all files inside archive, finds stylesheets under
// "pathIn" and reads them. "pathOut" is prepended to the names, so results
// keep archive location when archive was found in directory.
func collectArchive(ctx context.Context, path, pathIn, pathOut string, log *zap.Logger) (sheets []*stylesheet, err error) {
	defer func() {
		if err == nil && len(sheets) == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, []string{stylesheetExt}, func(archive string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to read file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			log.Error("Unable to read file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		sheets = append(sheets, &stylesheet{
			name:    filepath.Join(pathOut, filepath.FromSlash(f.FileHeader.Name)),
			archive: archive,
			data:    data,
		})
		return nil
	})
	return sheets, err
}

// processStylesheet loads and decodes single stylesheet and hands it over to
// the handler.
func processStylesheet(ctx context.Context, s *stylesheet, dst string, handle handlerFunc, log *zap.Logger) (rerr error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Processing ended with panic", append(s.fields(), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))...)
			rerr = fmt.Errorf("processing panic: %v", r)
		}
	}()

	data, err := s.load()
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}
	if data, err = decodeStylesheet(data); err != nil {
		return err
	}
	return handle(ctx, s, data, dst, log)
}

// scopeStylesheet prefixes selectors of the stylesheet and writes result.
func scopeStylesheet(ctx context.Context, s *stylesheet, data []byte, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	outputName := buildOutputPath(s.name, dst, env)
	if err := prepareOutput(outputName, env.Overwrite, log); err != nil {
		return err
	}

	scoped, stats := env.Scoper.Scope(string(data))
	if err := os.WriteFile(outputName, []byte(scoped), 0644); err != nil {
		return fmt.Errorf("unable to write scoped stylesheet: %w", err)
	}

	log.Info("Created scoped stylesheet", append(s.fields(),
		zap.String("to", outputName),
		zap.Int("original_size", stats.InputBytes),
		zap.Int("scoped_size", stats.OutputBytes),
		zap.Int("rules", stats.Rules))...)

	if env.Cfg.Scoping.Verify {
		rpt := css.NewVerifier(log).Verify([]byte(scoped), env.Scoper.Class(), outputName)
		for _, sel := range rpt.Unscoped {
			log.Warn("Selector left unscoped", zap.String("to", outputName), zap.String("selector", sel))
		}
	}

	// Store result for debugging
	if env.Rpt != nil {
		env.Rpt.Store("result-"+filepath.ToSlash(s.name), outputName)
	}
	return nil
}

// withOutline stores structure of every source stylesheet in debug report
// before passing it along.
func withOutline(next handlerFunc) handlerFunc {
	return func(ctx context.Context, s *stylesheet, data []byte, dst string, log *zap.Logger) error {
		name := filepath.ToSlash(s.name)
		if len(s.archive) != 0 {
			name = filepath.Base(s.archive) + "/" + name
		}
		state.EnvFromContext(ctx).Rpt.StoreData("outline/"+name+".txt", []byte(css.Outline(data)))
		return next(ctx, s, data, dst, log)
	}
}

// verifyStylesheet checks that every selector is scoped.
func verifyStylesheet(ctx context.Context, s *stylesheet, data []byte, _ string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	rpt := css.NewVerifier(log).Verify(data, env.Scoper.Class(), s.name)
	for _, sel := range rpt.Unscoped {
		log.Warn("Selector is not scoped", append(s.fields(), zap.String("selector", sel))...)
	}
	if !rpt.Scoped() {
		return fmt.Errorf("%d of %d selectors are not scoped", len(rpt.Unscoped), len(rpt.Selectors))
	}
	log.Info("Stylesheet is scoped", append(s.fields(), zap.Int("selectors", len(rpt.Selectors)))...)
	return nil
}

// prepareOutput checks if output file already exists and makes sure its
// directory is there.
func prepareOutput(outputName string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Debug("Overwriting existing file", zap.String("file", outputName))
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}
