/*
Package bootstrap implements the one-time credential bootstrap of a server
host.

Three credential pairs are created on first provisioning and never touched
again:

  - webui:   RSA keypair, marked by /etc/opscode/webui_pub.pem
  - worker:  RSA keypair, marked by /etc/opscode/worker-public.pem
  - pivotal: self-signed certificate and key, marked by /etc/opscode/pivotal.pem

Public halves are root:root 0644, private halves belong to the service user
with group root and mode 0600.

# Policies

PolicyCoupled (default) decides a whole pair on its marker. If the marker is
present nothing is generated, even when the partner half has been deleted; the
missing file is reported in the log and stays missing. This keeps an operator
from silently rotating a key that other services may still trust.

PolicySelfHealing repairs partial pairs: a missing public half is derived from
the private half, and a missing private half causes the whole pair to be
generated again.

Either way a pair is always written from a single generation event, and the
marker half is written last.
*/
package bootstrap
