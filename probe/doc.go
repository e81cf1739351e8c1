/*
Package probe actively checks the health of containers by talking to the
services they offer over TCP, in addition to (or instead of) Docker's own
health checks.

A [Probe] dials a TCP address, optionally sends a scripted sequence of request
lines, and then reads the response until the peer closes the connection or the
probe times out. The probe passes if all expected substrings show up in the
response. For instance, checking an IMAP service:

	probe.Probe{
	    Container: "protonmail-bridge",
	    Address:   "protonmail-bridge:143",
	    Send:      []string{"a LOGIN user secret", `a LIST "" "*"`, "a LOGOUT"},
	    Expect:    []string{"a OK", "INBOX"},
	}
*/
package probe
