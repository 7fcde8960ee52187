package domain

// Keys monta as chaves do store. Os formatos são o esquema persistido e são
// compartilhados com outras instâncias; não mude sem migrar.
type Keys struct {
	Prefix string
}

func (k Keys) PermanentBan(id Key) string { return k.Prefix + "blacklist_" + string(id) }
func (k Keys) TemporaryBan(id Key) string { return k.Prefix + "temp_blacklist_" + string(id) }
func (k Keys) WasTempBanned(id Key) string {
	return k.Prefix + "was_temp_blacklisted_" + string(id)
}
func (k Keys) RequestCount(id Key) string { return k.Prefix + "request_count_" + string(id) }

// GlobalBan usa ':' em vez de '_' (namespace separado).
func (k Keys) GlobalBan(id Key) string { return k.Prefix + "blacklist:" + string(id) }

// GlobalViolations é o contador único de 429 de todos os clientes. Fica fora
// dos namespaces por identificador para não colidir com nenhum cliente.
func (k Keys) GlobalViolations() string { return k.Prefix + "global_violation_count" }
