package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"bms-gateway/internal/logging"
	"bms-gateway/internal/protocol/dalybms"
)

func main() {
	strict := flag.Bool("strict", false, "stop at the first line that fails to decode")
	maxLine := flag.Int("max-line", 64*1024, "maximum line length in bytes")
	level := flag.String("log-level", "warn", "log level for decode diagnostics (stderr)")
	flag.Parse()

	logger := logging.NewStderrLogger(*level)
	defer logger.Sync()

	in := io.Reader(os.Stdin)
	name := "stdin"
	if flag.NArg() > 0 {
		name = flag.Arg(0)
		f, err := os.Open(name)
		if err != nil {
			logger.Fatal("Failed to open input", zap.String("file", name), zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	if err := run(in, os.Stdout, *maxLine, *strict, logger.With(zap.String("input", name))); err != nil {
		logger.Error("Decode aborted", zap.Error(err))
		os.Exit(1)
	}
}

// run 逐行解析并输出缩进 JSON, 非 strict 模式下跳过无法解析的行
func run(in io.Reader, out io.Writer, maxLine int, strict bool, logger *zap.Logger) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), maxLine+1)
	sc.Split(dalybms.NewLineScanner(maxLine).SplitFunc)

	lineNo, failed := 0, 0
	for sc.Scan() {
		lineNo++
		frame, err := dalybms.Decode(sc.Text())
		if err != nil {
			failed++
			logger.Warn("Failed to decode line", zap.Int("line", lineNo), zap.Error(err))
			if strict {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}
		for _, w := range frame.Warnings {
			logger.Warn("Partial section", zap.Int("line", lineNo), zap.String("warning", w.String()))
		}
		data, err := json.MarshalIndent(frame, "", "  ")
		if err != nil {
			failed++
			logger.Warn("Failed to encode frame", zap.Int("line", lineNo), zap.Error(err))
			if strict {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	logger.Info("Done", zap.Int("lines", lineNo), zap.Int("failed", failed))
	return nil
}
