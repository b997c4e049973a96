package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ByLCY/labelcanvas/config"
	"github.com/ByLCY/labelcanvas/dsl"
	"github.com/ByLCY/labelcanvas/engine"
	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/layout"
	"github.com/ByLCY/labelcanvas/printer"
)

func main() {
	input := flag.String("in", "examples/shelf.label", ".label 文件路径")
	output := flag.String("out", "output/label.pdf", "PDF 输出路径")
	printTo := flag.String("print", "", "发送到指定打印机（PDF 或 Spool），为空时导出 PDF")
	debug := flag.String("debug", "", "打印载荷调试 JSON 输出路径")
	dataPath := flag.String("data", "", "绑定到 ${} 占位符的 JSON 数据文件")
	strict := flag.Bool("strict", false, "空文档、未解析样式与未绑定占位符视为错误")
	initLabel := flag.Bool("init", false, "按设置中的标签尺寸与单位在 -in 处创建空白 .label 文件")
	fields := flag.Bool("fields", false, "列出标签引用的数据字段后退出")
	configPath := flag.String("config", "", "设置文件路径，默认为用户配置目录下的 labelcanvas/settings.toml")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	settings, err := loadSettings(*configPath)
	if err != nil {
		log.Fatalf("读取设置失败: %v", err)
	}

	if *initLabel {
		if err := createLabel(*input, settings); err != nil {
			log.Fatalf("创建标签失败: %v", err)
		}
		fmt.Printf("已创建：%s\n", *input)
		return
	}

	inputData, err := loadData(*dataPath)
	if err != nil {
		log.Fatalf("读取 data 文件失败: %v", err)
	}

	opts := engine.OptionsFromSettings(settings)
	opts.Strict = opts.Strict || *strict
	opts.Data = inputData
	opts.BaseDir = filepath.Dir(*input)
	opts.Logger = logger

	if *fields {
		names, err := listFields(*input, opts)
		if err != nil {
			log.Fatalf("读取标签失败: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	out, err := run(*input, *output, *printTo, *debug, opts)
	if err != nil {
		log.Fatalf("生成标签失败: %v", err)
	}
	fmt.Printf("已输出：%s\n", out)
}

func loadSettings(path string) (config.Settings, error) {
	if path == "" {
		def, err := config.DefaultPath()
		if err != nil {
			return config.Default(), nil
		}
		path = def
	}
	return config.Load(path)
}

// loadData 读取 JSON 数据文件。数字保留为 json.Number，长编号不会变成科学计数法。
func loadData(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	return data, nil
}

// createLabel 写出一份空白标签，已存在的文件不会被覆盖。
func createLabel(path string, s config.Settings) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	doc := engine.NewDocument(name, s)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := dsl.Encode(file, doc); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func openLabel(path string) (*label.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开标签文件 %s: %w", path, err)
	}
	defer file.Close()
	return dsl.Load(file)
}

func listFields(inputPath string, opts engine.Options) ([]string, error) {
	doc, err := openLabel(inputPath)
	if err != nil {
		return nil, err
	}
	e, err := engine.New(doc, opts)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.Fields(), nil
}

// run 串联解析、序列化与打印，返回作业输出位置。
func run(inputPath, outputPath, printerName, debugPath string, opts engine.Options) (string, error) {
	doc, err := openLabel(inputPath)
	if err != nil {
		return "", err
	}

	e, err := engine.New(doc, opts)
	if err != nil {
		return "", err
	}
	defer e.Close()

	if debugPath != "" {
		if err := writeDebug(e, debugPath); err != nil {
			return "", err
		}
	}

	done := make(chan printer.StatusEvent, 1)
	sub := e.OnPrintStatus(func(ev printer.StatusEvent) {
		if ev.State.Terminal() {
			done <- ev
		}
	})
	defer sub.Unsubscribe()

	ctx := context.Background()
	if printerName != "" {
		_, err = e.Print(ctx, printerName)
	} else {
		_, err = e.ExportPDF(ctx, outputPath)
	}
	if err != nil {
		return "", err
	}
	ev := <-done
	if ev.State == printer.Failed {
		return "", fmt.Errorf("打印作业失败: %w", ev.Err)
	}
	return ev.Output, nil
}

func writeDebug(e *engine.Engine, debugPath string) error {
	p, err := e.Payload()
	if err != nil {
		return fmt.Errorf("生成打印载荷失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteJSON(p, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
