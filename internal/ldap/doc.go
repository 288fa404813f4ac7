/*
Package ldap is the Active Directory transport used by the query engine.

# Connection Management

The Client interface provides pooled connections with automatic failover:

  - SRV-based domain controller discovery (_ldaps, _ldap, then _gc)
  - Connection pooling with periodic health checks
  - Automatic retry with exponential backoff
  - Simple, Kerberos (GSSAPI), EXTERNAL and anonymous binds
  - Client-side rate limiting of searches and result pages

# Searching

Search returns a SearchStream that pages through results with the simple
paged results control and, when requested, asks the server to sort them:

	stream, err := client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     "DC=example,DC=com",
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     "(objectClass=user)",
		Attributes: []string{"sAMAccountName"},
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		fmt.Println(stream.Entry().GetAttributeValue("sAMAccountName"))
	}
	return stream.Err()

The stream holds its pooled connection until it is exhausted or closed.

# Value Handling

GUID, SID and FILETIME helpers convert Active Directory's binary and
integer encodings to uuid.UUID, S-1-... strings and time.Time.

# Error Handling

Errors are returned as *LDAPError, classified as retryable or not, with the
server's result code and message preserved.
*/
package ldap
