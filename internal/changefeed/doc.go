// Package changefeed fans register changes out to the WebSocket hub, the
// MQTT bridge and InfluxDB.
//
// The Dispatcher is subscribed to the process image. Each change is queued
// without blocking the writer and delivered from a single goroutine:
//
//	feed := changefeed.NewDispatcher(256,
//	    changefeed.NewBroadcastSink(hub),
//	    changefeed.NewInfluxSink(influx, img.Catalog(), cfg.Device.ID),
//	)
//	img.Subscribe(feed.Observe)
//	go feed.Run(ctx)
package changefeed
