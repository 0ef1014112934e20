package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"webepub/extract"
	"webepub/state"
)

// Run is "convert" command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if !isURL(src) {
		if src, err = filepath.Abs(src); err != nil {
			return err
		}
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	pg, err := loadPage(ctx, src, &env.Cfg.Images)
	if err != nil {
		return err
	}
	pageURL := cmd.String("url")
	if pageURL == "" {
		pageURL = pg.url
	}

	ex, err := NewExporter(env.Cfg, env.DefaultStyle, log)
	if err != nil {
		return err
	}

	in := Input{Page: pg.root, PageURL: pageURL, Title: cmd.String("title")}
	if err := selectContent(&in, ex.Extractor(), cmd.String("selector"), cmd.StringSlice("select"), log); err != nil {
		return err
	}

	res, doc, err := ex.Export(ctx, in)
	if err != nil {
		return err
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("content.html", []byte(doc.ContentHTML()))
	}

	out := filepath.Join(dst, res.Filename)
	if err := writeResult(out, res.Data, env.Overwrite, log); err != nil {
		return err
	}
	if env.Rpt != nil {
		env.Rpt.Store("result.epub", out)
	}
	log.Info("EPUB written", zap.String("file", out))
	return nil
}

// selectContent decides between container and selection mode.
func selectContent(in *Input, ex *extract.Extractor, selector string, selections []string, log *zap.Logger) error {
	doc := goquery.NewDocumentFromNode(in.Page)

	if selector != "" {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return fmt.Errorf("no element matches selector %q", selector)
		}
		in.Container = sel.Get(0)
		return nil
	}

	if len(selections) > 0 {
		for _, s := range selections {
			sel := doc.Find(s).First()
			if sel.Length() == 0 {
				log.Warn("Selection matches nothing", zap.String("selector", s))
				continue
			}
			in.Ranges = append(in.Ranges, extract.NodeRange{Node: sel.Get(0)})
		}
		// empty selection is reported by extractor
		return nil
	}

	in.Container = ex.FindContainer(in.Page)
	if in.Container == nil {
		return errors.New("no content container found on the page")
	}
	log.Debug("Using content container", zap.String("element", describeNode(in.Container)))
	return nil
}

func describeNode(n *html.Node) string {
	s := n.Data
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			s += "#" + a.Val
		case "class":
			s += "." + a.Val
		}
	}
	return s
}

func writeResult(out string, data []byte, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(out); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", out)
		}
		log.Warn("Overwriting existing file", zap.String("file", out))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("unable to write output file: %w", err)
	}
	return nil
}
