/*
Package realtime streams call events to monitoring consumers.

Hub is the in-process side: it keeps a bounded window of recent events, replays
it to late subscribers and serves them over websocket. Client is the outbound
side: it keeps a websocket to an external monitor alive, reconnecting with
exponential backoff. Both are best-effort: Publish never blocks the caller and
drops events rather than waiting on a slow consumer.
*/
package realtime
