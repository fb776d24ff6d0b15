// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/promutil"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/depflow/pkg/version"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

const (
	maxHTTPConnection     = 100
	httpConnectionTimeout = 10 * time.Second
	httpShutdownTimeout   = 5 * time.Second

	apiOpVarTaskID  = "task_id"
	statusAPIPrefix = "/api/v1"
)

// statusAPI serves read only views of the job execution service.
type statusAPI struct {
	pipelineID string
	tasks      taskReader
}

type taskReader interface {
	GetHandle(ctx context.Context, id model.TaskID) (*model.TaskHandle, error)
	ListHandles(ctx context.Context) ([]*model.TaskHandle, error)
}

var _ taskReader = (*jobsvc.LocalService)(nil)

func newStatusRouter(api *statusAPI) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promutil.HTTPHandlerForMetric()))
	router.GET("/status", api.status)
	v1 := router.Group(statusAPIPrefix)
	// task ids contain slashes
	v1.GET("/tasks/*"+apiOpVarTaskID, api.queryTask)
	return router
}

func (a *statusAPI) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":  version.ReleaseVersion,
		"git-hash": version.GitHash,
		"pipeline": a.pipelineID,
	})
}

// queryTask returns the handle of one task, or every handle when no id
// is given.
func (a *statusAPI) queryTask(c *gin.Context) {
	id := strings.TrimPrefix(c.Param(apiOpVarTaskID), "/")
	if id == "" {
		handles, err := a.tasks.ListHandles(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, handles)
		return
	}

	h, err := a.tasks.GetHandle(c.Request.Context(), id)
	switch {
	case errors.Is(err, errors.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, h)
	}
}

// serveStatus serves metrics and task status on StatusAddr until ctx is
// done.
func (s *Server) serveStatus(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.StatusAddr)
	if err != nil {
		return errors.WrapError(errors.ErrServeHTTP, err)
	}
	lis = netutil.LimitListener(lis, maxHTTPConnection)

	router := newStatusRouter(&statusAPI{
		pipelineID: s.cfg.Pipeline.ID,
		tasks:      s.svc,
	})
	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  httpConnectionTimeout,
		WriteTimeout: httpConnectionTimeout,
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	wg.Go(func() error {
		log.L().Info("status server is running", zap.String("addr", s.cfg.StatusAddr))
		err := srv.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			return errors.WrapError(errors.ErrServeHTTP, err)
		}
		return nil
	})
	return wg.Wait()
}
