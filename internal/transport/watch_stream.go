package transport

import (
	"google.golang.org/grpc"

	"github.com/sekas/sekas/internal/root"
)

// watchHandler implements the Watch server-streaming RPC: a client
// subscribes once and receives a WatchEvent per node change until it
// cancels (spec §4.9 supplement's watch surface).
func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	s := srv.(*RootService)

	var req WatchRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	hub := s.root.WatcherHub()
	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	ctx := stream.Context()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(toWireEvent(ev)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func toWireEvent(ev root.NodeEvent) *WatchEvent {
	return &WatchEvent{Node: ev.Node, Delete: ev.Delete}
}

var watchStreamDesc = grpc.StreamDesc{
	StreamName:    "Watch",
	Handler:       watchHandler,
	ServerStreams: true,
}
