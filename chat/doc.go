// Package chat maintains the Twitch IRC connection and buffers incoming
// messages for the vote ingest loop.
//
// The IRC client delivers messages on its own goroutine; the Poller stores
// them in a bounded buffer that the ingest coordinator drains on a fixed
// interval, preserving arrival order. When chat outpaces the drain rate the
// oldest messages are dropped and counted in the chat_dropped metric.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// the chat:read scope (TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN), plus the
// channel to join (TWITCH_CHANNEL).
package chat
