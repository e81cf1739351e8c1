/*
Package config loads the guardian configuration from YAML files, including
the policies, and watches the configuration file for policy changes.

Unknown fields are rejected, as are values failing validation; all
configuration problems are errors of class ErrPolicyInvalid.

A minimal configuration with a single policy looks like this:

	interval: 20s
	engine:
	  mode: streaming
	policies:
	  - id: restart-unhealthy
	    condition:
	      kind: duration
	      state: unhealthy
	      polls: 3
	    action: restart
	    cooldown: 1m
*/
package config
