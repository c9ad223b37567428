package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

// Watch reloads the service's file when it changes.  It watches the
// file's directory since editors often replace a file rather than
// write it.  Bursts of events within settle of each other cause one
// reload.
func (s *Service) Watch(ctx context.Context, settle time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	filename, err := filepath.Abs(s.Filename)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(filename)); err != nil {
		return err
	}

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			glog.V(1).Infof("watch %s %s", e.Op, e.Name)
			if e.Name != filename || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
				continue
			}
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			glog.Warningf("watching %s: %v", filename, err)
		case <-timer.C:
			if err := s.Reload(ctx); err != nil {
				glog.Errorf("reloading %s: %v", filename, err)
			}
		}
	}
}
