package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"

	"mbtiler/mbtiles"
)

// 支持的任务
const (
	ActionInfo   = "info"
	ActionList   = "list"
	ActionExport = "export"
)

func InitTask() {
	start := time.Now()
	ctx := SafeExitInst.Context()

	var err error
	switch action {
	case ActionInfo:
		err = runInfo(ctx, os.Stdout)
	case ActionList:
		err = runList(os.Stdout)
	case ActionExport:
		err = runExport(ctx)
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	SafeExitInst.Cleanup()
	if err != nil {
		log.Fatalf("task %s failed, details: %s", action, err)
	}

	secs := time.Since(start).Seconds()
	log.Printf("%.3fs finished...", secs)
}

// sourceURL 配置中的 mode / batch 作为地址的默认参数
func sourceURL(raw, mode string, batch int) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if q.Get("mode") == "" && mode != "" {
		q.Set("mode", mode)
	}
	if q.Get("batch") == "" && batch > 0 {
		q.Set("batch", strconv.Itoa(batch))
	}
	u.RawQuery = q.Encode()
	return u, nil
}

func openSource(ctx context.Context) (*mbtiles.MBTiles, error) {
	u, err := sourceURL(conf.Source.URI, conf.Source.Mode, conf.Source.Batch)
	if err != nil {
		return nil, err
	}
	store, err := mbtiles.NewFromURL(u, mbtiles.WithLogger(log))
	if err != nil {
		return nil, err
	}
	store.OnOpen(func(m *mbtiles.MBTiles) {
		log.Infof("瓦片库已打开: %s", m.Path())
	})
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	// 注册安全退出
	SafeExitInst.Register(func() { store.Close() })
	return store, nil
}

func runInfo(ctx context.Context, w io.Writer) error {
	store, err := openSource(ctx)
	if err != nil {
		return err
	}
	info, err := store.Info(ctx)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func runList(w io.Writer) error {
	list, err := mbtiles.List(conf.Source.Directory)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(list))
	for id := range list {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%s\n", id, list[id])
	}
	log.Infof("%d mbtiles found in %s", len(ids), conf.Source.Directory)
	return nil
}

func runExport(ctx context.Context) error {
	store, err := openSource(ctx)
	if err != nil {
		return err
	}
	info, err := store.Info(ctx)
	if err != nil {
		return err
	}
	bp, err := NewBreakPoint(conf.BreakPoint.SaveFilePath, info.ID, conf.Task.BufSize)
	if err != nil {
		return err
	}
	SafeExitInst.Register(func() { bp.Close() })

	task := NewTask(store, TilePath{Root: conf.Output.Directory, Pattern: conf.Output.Pattern}, bp)
	task.Name = info.ID
	if conf.Task.Geojson != "" {
		c, err := loadCollection(conf.Task.Geojson)
		if err != nil {
			return err
		}
		task.SetRegion(c.Bound())
	}
	if err := task.Export(ctx); err != nil {
		return err
	}
	if task.Failed() == 0 && ctx.Err() == nil {
		return bp.Remove()
	}
	return nil
}

// Task 导出任务
type Task struct {
	ID          string
	Name        string
	Store       *mbtiles.MBTiles
	Output      TilePath
	Total       int64
	Bar         *pb.ProgressBar
	region      *orb.Bound
	quiet       bool
	workerCount int
	bufSize     int
	breakPoint  *BreakPoint
	tileWG      sync.WaitGroup
	workers     chan struct{}
	saved       atomic.Int64
	skipped     atomic.Int64
	failed      atomic.Int64
}

// NewTask 创建导出任务
func NewTask(store *mbtiles.MBTiles, output TilePath, bp *BreakPoint) *Task {
	id, _ := shortid.Generate()

	task := Task{
		ID:         id,
		Name:       store.ID,
		Store:      store,
		Output:     output,
		breakPoint: bp,
	}
	task.workerCount = conf.Task.Workers
	if task.workerCount <= 0 {
		task.workerCount = 1
	}
	task.bufSize = conf.Task.BufSize
	task.workers = make(chan struct{}, task.workerCount)
	return &task
}

// SetRegion 只导出与范围相交的瓦片
func (task *Task) SetRegion(b orb.Bound) {
	task.region = &b
}

func (task *Task) Saved() int64   { return task.saved.Load() }
func (task *Task) Skipped() int64 { return task.skipped.Load() }
func (task *Task) Failed() int64  { return task.failed.Load() }

// Export 开启导出任务
func (task *Task) Export(ctx context.Context) error {
	total, err := task.Store.CountTiles(ctx)
	if err != nil {
		return err
	}
	task.Total = total
	log.Infof("Task %s(%s) starting, tiles: %d, resumed: %d", task.Name, task.ID, total, task.breakPoint.Len())

	task.Bar = pb.New64(total).Prefix(fmt.Sprintf("Export %s : ", task.Name)).Postfix("\n")
	if task.quiet {
		task.Bar.NotPrint = true
		task.Bar.Output = io.Discard
	}
	task.Bar.SetRefreshRate(time.Second)
	task.Bar.Start()

	var tilelist = make(chan *mbtiles.Tile, task.bufSize)
	errCh := make(chan error, 1)
	go func() {
		defer close(tilelist)
		errCh <- task.Store.EachTile(ctx, func(t *mbtiles.Tile) error {
			select {
			case tilelist <- t:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	for tile := range tilelist {
		task.Bar.Increment()
		// 如果已经在成功列表里
		if task.breakPoint.IsSuccessed(tile.T) || !task.inRegion(tile) {
			task.skipped.Add(1)
			continue
		}
		task.workers <- struct{}{}
		task.tileWG.Add(1)
		go task.tileSaver(tile)
	}
	//等待全部写完
	task.tileWG.Wait()
	err = <-errCh
	task.Bar.FinishPrint(fmt.Sprintf("Task %s finished, saved: %d, skipped: %d, failed: %d ~",
		task.ID, task.Saved(), task.Skipped(), task.Failed()))
	if errors.Is(err, context.Canceled) {
		log.Infof("Task %s got canceled.", task.Name)
		return nil
	}
	return err
}

func (task *Task) inRegion(tile *mbtiles.Tile) bool {
	if task.region == nil {
		return true
	}
	return tile.T.Bound().Intersects(*task.region)
}

// tileSaver 瓦片写入
func (task *Task) tileSaver(tile *mbtiles.Tile) {
	start := time.Now()
	//workers完成并清退
	defer func() {
		task.tileWG.Done()
		<-task.workers
	}()

	if err := saveToFiles(tile, &task.Output); err != nil {
		task.failed.Add(1)
		log.Errorf("create %v tile file error ~ %s", tile.T, err)
		return
	}
	task.saved.Add(1)
	task.breakPoint.SetSuccessed(tile.T)

	cost := time.Since(start).Milliseconds()
	log.Debugf("tile(z:%d, x:%d, y:%d), %dms , %.2f kb ...", tile.T.Z, tile.T.X, tile.T.Y, cost, float32(len(tile.C))/1024.0)
}
