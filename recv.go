package corenet

// RecvResult is Socket.Recv's outcome (spec 4.4.1, 4.4.4): a single
// read can carry decrypted application data, an orderly close signal,
// or a TLS alert the peer sent instead of data, and callers need to
// tell these apart rather than just getting bytes or an error.
type RecvResult struct {
	// Complete reports that this call actually produced a result
	// (rather than erroring out) -- set on every non-error return.
	Complete bool
	// Closed reports an orderly close: the peer shut its side down
	// and no more data will ever arrive on this socket. Data is empty
	// when Closed is true.
	Closed bool
	// Data is the bytes read into the caller's buffer.
	Data []byte
	// Alert is set when the peer sent a TLS alert instead of data;
	// nil for non-TLS sockets and for reads that carried ordinary
	// data.
	Alert *TLSAlert
}

// TLSAlert is a TLS alert the peer sent (spec 4.4.4, spec 8's
// howsmyssl/rc4.badssl scenarios).
type TLSAlert struct {
	// Desc is the alert description in lowercase, underscore-joined
	// form (e.g. "close_notify", "handshake_failure").
	Desc string
	// IsFatal reports whether the alert terminates the connection;
	// close_notify is the one alert this core treats as non-fatal.
	IsFatal bool
}
