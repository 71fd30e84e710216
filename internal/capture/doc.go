// Package capture acquires a single barcode per session from a camera
// decoder or from manual keyboard entry.
//
// # Lifecycle
//
// A [Session] moves through these states:
//
//	Idle -> Starting -> Scanning -> {Succeeded, ManualEntry, Failed} -> Closed
//
// ManualEntry is reachable from Starting, Scanning and Failed. Closed is
// terminal and reachable from every state.
//
// Starting checks the environment (secure, not embedded) before touching any
// device, enumerates devices through the [Decoder], prefers a rear camera and
// opens it. Torch capability is read from the open handle when it implements
// [CapabilityHandle], otherwise from a separately acquired [Stream].
//
// # Guarantees
//
//   - At most one barcode is emitted per session. Decode callbacks that
//     arrive outside Scanning, or after the result, are dropped without side
//     effects.
//   - Every exit from Scanning moves the [Handle] and [Stream] out of the
//     session and stops them exactly once. Stop failures are logged.
//   - Device failures never escape as panics or unhandled errors: they become
//     a Failed state carrying a [Failure] with a fixed [Category] message.
//   - Feedback (beep, vibration) is best-effort and cannot block the result.
//
// # Manager
//
// [Manager] owns the sessions of a running server: it assigns ids, caps the
// number of live sessions with a [SessionLimiter], fans events out to
// subscribers and sweeps idle sessions. Device backends are plugged in per
// source name with [Manager.RegisterSource].
package capture
