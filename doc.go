/*
Package dialtone is a telephony flow engine: it drives interactive voice
response conversations for inbound calls by interpreting a conversation graph
one carrier callback at a time.

Every callback (call started, speech or keypad result, status change) arrives as
an independent HTTP request. The engine reconstructs the call's position from
its persisted session, advances the graph and answers with carrier markup that
tells the carrier what to do next: speak, collect input, transfer, record or
hang up.

# Architecture

  - Flow graphs are immutable and versioned. A call keeps the version it
    started with even if the flow is redeployed mid-call.
  - Sessions are mutated one callback at a time per call ID, so carrier
    retries and out-of-order deliveries never race.
  - Failures never reach the carrier as HTTP errors: the caller hears an
    apology and the call is ended.

# Usage

	eng := dialtone.New(dialtone.WithLogger(logger))
	if _, err := eng.LoadDir(ctx, "flows"); err != nil {
		log.Fatal(err)
	}
	http.ListenAndServe(":8080", eng.Handler())

See the cmd/dialtone binary for a complete server with redis, sqlite and
realtime monitoring wired in.
*/
package dialtone
