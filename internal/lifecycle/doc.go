// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package lifecycle owns every state transition of a parking session.

Three components write sessions, each for its own concern:

  - Controller handles inbound presence, payment and alert events. It runs
    presence through the debounce gate, creates sessions on confirmation,
    records heartbeats, applies payments and regresses expired paid
    sessions when their PaidExpired alert comes back on the alert stream.
  - Monitor sweeps open sessions and raises UnpaidOverstay and PaidExpired
    alerts, at most once per entry into each condition.
  - Watchdog sweeps open sessions and terminates those without a heartbeat
    for the silence timeout. It is the only writer of EndTime.

All three share a spotlock.Locker. The debounce record and the session row
of one spot form a single critical section, and the events for a mutation
are handed to the Publisher inside it, so outbound events for a spot leave
in mutation order.

The Monitor never flips a status itself. A PaidExpired alert travels
through the transport and back into Controller.HandleAlert, which keeps a
single writer per concern.

Failure handling:

  - Store errors inside an event handler are returned so the transport
    redelivers the message.
  - Orphan payments return ErrOrphanPayment; the caller acknowledges them.
  - Sweeps log and count per-session failures and continue the batch.
  - Publish failures are the Publisher's concern and never reach callers.
*/
package lifecycle
