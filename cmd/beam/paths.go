package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samcharles93/beamsearch/internal/model"
)

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

// resolveModelPath picks the model file for decode. An explicit --model
// wins; otherwise the models directory is searched and, when it holds more
// than one model, the user is asked to choose.
func resolveModelPath(modelFlag, modelsPath string, stdin io.Reader, stderr io.Writer) (string, error) {
	modelsDir := strings.TrimSpace(modelsPath)
	if modelsDir == "" {
		modelsDir = strings.TrimSpace(os.Getenv(model.EnvModelsDir))
	}

	modelFlag = strings.TrimSpace(modelFlag)
	if modelFlag != "" {
		if strings.ContainsRune(modelFlag, filepath.Separator) || model.IsModelFile(modelFlag) || modelsDir == "" {
			return filepath.Clean(modelFlag), nil
		}
		infos, err := model.Discover(modelsDir)
		if err != nil {
			return "", err
		}
		for _, info := range infos {
			if info.Name == modelFlag {
				return info.Path, nil
			}
		}
		return "", fmt.Errorf("%w: %q not found in %s", model.ErrUnknownModel, modelFlag, modelsDir)
	}

	if modelsDir == "" {
		return "", fmt.Errorf("--model, --toy or --models-path is required unless %s is set", model.EnvModelsDir)
	}
	infos, err := model.Discover(modelsDir)
	if err != nil {
		return "", err
	}
	switch len(infos) {
	case 0:
		return "", fmt.Errorf("no models found in %s", modelsDir)
	case 1:
		_, _ = fmt.Fprintf(stderr, "decode: using model %s\n", infos[0].Path)
		return infos[0].Path, nil
	default:
		if !stdinIsTTY() {
			return "", fmt.Errorf(
				"multiple models found in %s but stdin is not interactive; set --model",
				modelsDir,
			)
		}
		return selectModelInteractively(modelsDir, infos, stdin, stderr)
	}
}

func selectModelInteractively(modelsDir string, infos []model.Info, stdin io.Reader, stderr io.Writer) (string, error) {
	_, _ = fmt.Fprintf(stderr, "decode: select a model from %s\n", modelsDir)
	for i, info := range infos {
		_, _ = fmt.Fprintf(stderr, "%d. %s\n", i+1, info.Name)
	}

	reader := bufio.NewReader(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "decode: enter selection [1-%d]: ", len(infos))
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no selection provided on stdin; set --model")
			}
			continue
		}

		idx, convErr := strconv.Atoi(line)
		if convErr != nil || idx < 1 || idx > len(infos) {
			_, _ = fmt.Fprintf(stderr, "decode: invalid selection %q\n", line)
			if errors.Is(err, io.EOF) {
				return "", errors.New("invalid selection provided on stdin; set --model")
			}
			continue
		}
		return infos[idx-1].Path, nil
	}
}

// readPrompts collects prompts from --prompt values and the --input file,
// one prompt per line. Blank lines and lines starting with '#' are skipped.
func readPrompts(flags []string, inputPath string, stdin io.Reader) ([]string, error) {
	prompts := append([]string(nil), flags...)
	if inputPath == "" {
		return prompts, nil
	}

	var r io.Reader = stdin
	if inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", inputPath, err)
	}
	return prompts, nil
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}
