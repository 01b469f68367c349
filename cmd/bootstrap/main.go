// Package main 从本地文件批量导入 CRM 数据
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/config"
	"crm-rag-api/internal/domain/entity"
	einoobs "crm-rag-api/internal/observability/eino"
	"crm-rag-api/internal/wire"
	"crm-rag-api/pkg/logger"
)

func main() {
	customers := flag.String("customers", "", "path to customer records (JSON or CSV)")
	quotes := flag.String("quotes", "", "path to quote records (JSON or CSV)")
	work := flag.String("work", "", "path to work history records (JSON or CSV)")
	reset := flag.Bool("reset", false, "drop all documents before importing")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Starting CRM data bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format, cfg.Observability.Logging.Output)
	einoobs.Init()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// 2. 初始化写入链路
	ing, cleanup, err := wire.InitializeIngestion(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize ingestion: %v", err)
	}
	defer cleanup()

	if err := ing.Manager.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize collection: %v", err)
	}

	// 3. 可选：重置集合
	if *reset {
		fmt.Println("Resetting collection...")
		if err := ing.Manager.Reset(ctx); err != nil {
			log.Fatalf("failed to reset collection: %v", err)
		}
	}

	// 4. 读取数据源
	var sources []retrieval.IngestSource
	for _, f := range []struct {
		path string
		t    entity.RecordType
	}{
		{*customers, entity.RecordTypeCustomer},
		{*quotes, entity.RecordTypeQuote},
		{*work, entity.RecordTypeWorkHistory},
	} {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			log.Fatalf("failed to read %s: %v", f.path, err)
		}
		sources = append(sources, retrieval.IngestSource{
			Source:   string(data),
			Type:     f.t,
			Metadata: map[string]any{"sourceFile": f.path},
		})
	}
	if len(sources) == 0 {
		fmt.Println("No input files given, nothing to import.")
		return
	}

	// 5. 导入
	summary := ing.Indexer.IngestMultiSource(ctx, sources)
	fmt.Printf("Imported %d documents (failed sources: %d)\n", summary.Total, summary.Failed)
	for _, t := range entity.RecordTypes {
		fmt.Printf("  %-12s %d\n", t, summary.ByType[t])
	}

	if st, err := ing.Manager.Status(ctx); err == nil {
		fmt.Printf("Collection %s now holds %d documents\n", st.CollectionName, st.TotalDocuments)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
	fmt.Println("Bootstrap completed successfully!")
}
