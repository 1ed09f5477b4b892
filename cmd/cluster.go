package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/constants"
	"github.com/kozaktomas/facecluster/internal/facematch"
	"github.com/kozaktomas/facecluster/internal/oracle"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <image|dir>...",
	Short: "Group the faces found in images into likely-same-person clusters",
	Long: `Detect every face in the given images (directories are searched recursively
for .png, .jpg and .jpeg files) and group them with DBSCAN.

Faces within --eps of each other are neighbors. With --min-pts 1 every face
belongs to a cluster; larger values leave isolated faces as noise.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().Float64("eps", 0, "Neighborhood radius (default from CLUSTER_EPS)")
	clusterCmd.Flags().Int("min-pts", 0, "Minimum neighborhood size, self included (default from CLUSTER_MIN_PTS)")
	clusterCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of images encoded in parallel")
	clusterCmd.Flags().Bool("json", false, "Output as JSON")
}

// detectedFace is one face found in an input image.
type detectedFace struct {
	Path      string              `json:"path"`
	Face      int                 `json:"face"`
	Embedding facematch.Embedding `json:"-"`
}

type clusterGroup struct {
	Label int            `json:"label"`
	Faces []detectedFace `json:"faces"`
}

type clusterOutput struct {
	Eps      float64        `json:"eps"`
	MinPts   int            `json:"min_pts"`
	Clusters []clusterGroup `json:"clusters"`
	Noise    []detectedFace `json:"noise"`
	Failed   []string       `json:"failed,omitempty"`
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), constants.ImageFetchTimeoutSeconds*time.Second)
	defer cancel()
	cfg := config.Load()

	eps, minPts, err := resolveClusterParams(cmd, cfg)
	if err != nil {
		return err
	}
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)
	jsonOutput := mustGetBool(cmd, "json")

	paths, err := collectImagePaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no .png, .jpg or .jpeg images found")
	}

	faces, failed, err := encodeImages(ctx, newEncoder(cfg), paths, concurrency, !jsonOutput)
	if err != nil {
		return err
	}

	out, err := clusterFaces(faces, eps, minPts)
	if err != nil {
		return err
	}
	out.Failed = failed

	if jsonOutput {
		return printJSON(out)
	}
	printClusters(out, len(paths), len(faces))
	return nil
}

// resolveClusterParams takes --eps and --min-pts when given and the configured
// defaults otherwise. Explicit values are validated as given.
func resolveClusterParams(cmd *cobra.Command, cfg *config.Config) (float64, int, error) {
	eps, minPts := cfg.Cluster.Eps, cfg.Cluster.MinPts
	if cmd.Flags().Changed("eps") {
		eps = mustGetFloat64(cmd, "eps")
	}
	if cmd.Flags().Changed("min-pts") {
		minPts = mustGetInt(cmd, "min-pts")
	}
	if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		return 0, 0, goerr.Wrap(facematch.ErrInvalidInput, "--eps must be a positive number", goerr.V("eps", eps))
	}
	if minPts < 1 {
		return 0, 0, goerr.Wrap(facematch.ErrInvalidInput, "--min-pts must be at least 1", goerr.V("min_pts", minPts))
	}
	return eps, minPts, nil
}

// collectImagePaths expands directories into the image files they contain. Files named
// explicitly must be images; files found while walking are filtered silently.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			if err := oracle.ValidateImageName(arg); err != nil {
				return nil, err
			}
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && oracle.ValidateImageName(path) == nil {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return dedupePaths(paths), nil
}

// dedupePaths drops repeated paths, keeping the first occurrence. Paths are compared
// after filepath.Clean so "dir/a.jpg" and "dir//a.jpg" count as one file.
func dedupePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		key := filepath.Clean(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// encodeImages detects faces in every image with a bounded worker pool. Images that
// cannot be read or encoded are reported in failed and skipped.
func encodeImages(ctx context.Context, enc oracle.Encoder, paths []string, concurrency int, progress bool) ([]detectedFace, []string, error) {
	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Detecting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	perImage := make([][]facematch.Embedding, len(paths))
	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			embs, err := encodeFile(gctx, enc, path)
			if err != nil {
				slog.Warn("skipping image", slog.String("path", path), slog.Any("error", err))
				mu.Lock()
				failed = append(failed, path)
				mu.Unlock()
			}
			perImage[i] = embs
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	var faces []detectedFace
	for i, embs := range perImage {
		for j, emb := range embs {
			faces = append(faces, detectedFace{Path: paths[i], Face: j, Embedding: emb})
		}
	}
	sort.Strings(failed)
	return faces, failed, nil
}

func encodeFile(ctx context.Context, enc oracle.Encoder, path string) ([]facematch.Embedding, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line or a walk below it
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	embs, err := enc.DetectAndEncode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return embs, nil
}

// clusterFaces runs DBSCAN over faces. Clusters are ordered by their first face and
// renumbered from 0 in that order.
func clusterFaces(faces []detectedFace, eps float64, minPts int) (*clusterOutput, error) {
	batch := make([]facematch.Embedding, len(faces))
	for i, f := range faces {
		batch[i] = f.Embedding
	}
	labels, err := facematch.ClusterLabels(batch, eps, minPts)
	if err != nil {
		return nil, fmt.Errorf("clustering faces: %w", err)
	}

	out := &clusterOutput{Eps: eps, MinPts: minPts, Clusters: []clusterGroup{}, Noise: []detectedFace{}}
	groups := make(map[int]int) // DBSCAN label -> index into out.Clusters
	for i, l := range labels {
		if l == facematch.NoiseLabel {
			out.Noise = append(out.Noise, faces[i])
			continue
		}
		idx, ok := groups[l]
		if !ok {
			idx = len(out.Clusters)
			groups[l] = idx
			out.Clusters = append(out.Clusters, clusterGroup{Label: idx})
		}
		out.Clusters[idx].Faces = append(out.Clusters[idx].Faces, faces[i])
	}
	return out, nil
}

func printClusters(out *clusterOutput, images, faces int) {
	fmt.Printf("Found %d faces in %d images (eps %.3f, min-pts %d)\n", faces, images, out.Eps, out.MinPts)
	for _, c := range out.Clusters {
		fmt.Printf("\nCluster %d (%d faces):\n", c.Label, len(c.Faces))
		for _, f := range c.Faces {
			fmt.Printf("  %s #%d\n", f.Path, f.Face)
		}
	}
	if len(out.Noise) > 0 {
		fmt.Printf("\nUnclustered (%d faces):\n", len(out.Noise))
		for _, f := range out.Noise {
			fmt.Printf("  %s #%d\n", f.Path, f.Face)
		}
	}
	if len(out.Failed) > 0 {
		fmt.Printf("\nFailed to process %d images:\n", len(out.Failed))
		for _, p := range out.Failed {
			fmt.Printf("  %s\n", p)
		}
	}
}
