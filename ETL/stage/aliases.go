package stage

import (
	"sort"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

// Field is a canonical field name
type Field string

const (
	FieldDate          Field = "date"
	FieldProvider      Field = "provider"
	FieldZone          Field = "zone"
	FieldCustomerZone  Field = "customer_zone"
	FieldKind          Field = "kind"
	FieldShiftID       Field = "shift_id"
	FieldOrderID       Field = "order_id"
	FieldStart         Field = "start"
	FieldEnd           Field = "end"
	FieldIncome        Field = "income"
	FieldTips          Field = "tips"
	FieldDistanceKm    Field = "distance_km"
	FieldOrderCount    Field = "order_count"
	FieldDuration      Field = "duration_minutes"
	FieldWeather       Field = "weather"
	FieldTemperature   Field = "temperature"
	FieldBusinessType  Field = "business_type"
	FieldChain         Field = "chain"
	FieldSpecialEvent  Field = "special_event"
	FieldWeeklyGroup   Field = "weekly_group"
	FieldIncomeOrders  Field = "income_orders"
	FieldIncomeKm      Field = "income_km"
	FieldIncomeAds     Field = "income_ads"
	FieldIncomeBonuses Field = "income_bonuses"
	FieldIncomeGroup   Field = "income_group"
	FieldIncomeTips    Field = "income_tips"
)

// mandatoryFields must have an alias among a record's field names
var mandatoryFields = []Field{FieldDate, FieldProvider, FieldZone}

// incomeComponents add up to the income when no explicit income is given
var incomeComponents = []Field{
	FieldIncomeOrders, FieldIncomeKm, FieldIncomeAds,
	FieldIncomeBonuses, FieldIncomeGroup, FieldIncomeTips,
}

// AliasTable maps a canonical field to the raw field names accepted for it.
// Names are compared after models.FoldLabel.
type AliasTable map[Field][]string

// DefaultSpreadsheetAliases covers the column names seen in the operations workbooks
func DefaultSpreadsheetAliases() AliasTable {
	return AliasTable{
		FieldDate:          {"Fecha", "date", "Dia", "fecha_turno"},
		FieldProvider:      {"Nombre_Local", "Local", "provider", "proveedor", "restaurant", "comercio_nombre"},
		FieldZone:          {"CP_Local", "Zona", "zone", "codigo_postal", "cp", "postal_code", "zone_code"},
		FieldCustomerZone:  {"CP_Cliente", "customer_zone", "zona_cliente"},
		FieldKind:          {"tipo", "record_type", "kind"},
		FieldShiftID:       {"ID_Turno", "shift_id", "turno"},
		FieldOrderID:       {"ID_Pedido", "order_id", "pedido"},
		FieldStart:         {"Hora_Inicio", "Hora_Aceptacion", "start", "start_time", "inicio"},
		FieldEnd:           {"Hora_Fin", "Hora_Entrega", "end", "end_time", "fin"},
		FieldIncome:        {"ingreso_total", "Ingreso", "income", "total"},
		FieldTips:          {"Propina_Pedido", "Propina", "tips", "propinas"},
		FieldDistanceKm:    {"Km_Totales", "Km", "distance_km", "distancia"},
		FieldOrderCount:    {"Pedidos_Totales", "order_count", "cantidad_pedidos"},
		FieldDuration:      {"duracion_min", "duration_minutes", "tiempo_entrega_min"},
		FieldWeather:       {"Clima", "weather", "condicion"},
		FieldTemperature:   {"Temperatura", "temperature", "temp"},
		FieldBusinessType:  {"Tipo_Negocio", "business_type", "rubro"},
		FieldChain:         {"Cadena", "is_chain", "chain"},
		FieldSpecialEvent:  {"Evento_Especial", "special_event", "evento"},
		FieldWeeklyGroup:   {"Grupo_Semanal", "weekly_group", "semana"},
		FieldIncomeOrders:  {"Ganancia_Pedido"},
		FieldIncomeKm:      {"Ganancia_Km"},
		FieldIncomeAds:     {"Ganancia_Publi"},
		FieldIncomeBonuses: {"Ganancia_Bonos"},
		FieldIncomeGroup:   {"Ganancia_Grupo"},
		FieldIncomeTips:    {"Ganancia_Propinas_Total"},
	}
}

// DefaultOCRAliases covers the noisier labels produced by character recognition
func DefaultOCRAliases() AliasTable {
	return AliasTable{
		FieldDate:          {"Fecha", "fecha del pedido", "dia", "date", "fch"},
		FieldProvider:      {"Nombre_Local", "Local", "nombre local", "comercio", "restaurante", "provider", "nomb local"},
		FieldZone:          {"CP_Local", "Zona", "cp local", "c.p.", "codigo postal", "zone", "zna"},
		FieldCustomerZone:  {"CP_Cliente", "cp cliente", "zona cliente"},
		FieldKind:          {"tipo", "kind"},
		FieldShiftID:       {"ID_Turno", "turno", "n turno"},
		FieldOrderID:       {"ID_Pedido", "pedido n", "n pedido", "order"},
		FieldStart:         {"Hora_Aceptacion", "Hora_Inicio", "aceptado", "hora inicio", "inicio"},
		FieldEnd:           {"Hora_Entrega", "Hora_Fin", "entregado", "hora fin", "fin"},
		FieldIncome:        {"ingreso_total", "ganancia", "total", "importe", "monto"},
		FieldTips:          {"Propina_Pedido", "propina", "tip"},
		FieldDistanceKm:    {"Km_Totales", "km", "kms", "distancia"},
		FieldOrderCount:    {"pedidos", "cantidad"},
		FieldDuration:      {"duracion", "tiempo"},
		FieldWeather:       {"Clima", "tiempo clima", "weather"},
		FieldTemperature:   {"Temperatura", "temp"},
		FieldBusinessType:  {"Tipo_Negocio", "rubro"},
		FieldChain:         {"Cadena"},
		FieldSpecialEvent:  {"Evento_Especial", "evento"},
		FieldWeeklyGroup:   {"Grupo_Semanal"},
		FieldIncomeOrders:  {"Ganancia_Pedido"},
		FieldIncomeKm:      {"Ganancia_Km"},
		FieldIncomeAds:     {"Ganancia_Publi"},
		FieldIncomeBonuses: {"Ganancia_Bonos"},
		FieldIncomeGroup:   {"Ganancia_Grupo"},
		FieldIncomeTips:    {"Ganancia_Propinas_Total"},
	}
}

// Merge returns a copy of t with extra synonyms appended per canonical field
func (t AliasTable) Merge(extra map[string][]string) AliasTable {
	out := make(AliasTable, len(t))
	for field, names := range t {
		out[field] = append([]string(nil), names...)
	}
	for field, names := range extra {
		out[Field(field)] = append(out[Field(field)], names...)
	}
	return out
}

// aliasIndex resolves folded raw field names to canonical fields
type aliasIndex map[string]Field

func (t AliasTable) index() aliasIndex {
	idx := make(aliasIndex)
	// Sorted so that a label claimed by two fields resolves the same way every run
	fields := make([]string, 0, len(t))
	for field := range t {
		fields = append(fields, string(field))
	}
	sort.Strings(fields)

	for _, field := range fields {
		idx[models.FoldLabel(field)] = Field(field)
		for _, name := range t[Field(field)] {
			folded := models.FoldLabel(name)
			if _, taken := idx[folded]; !taken {
				idx[folded] = Field(field)
			}
		}
	}
	return idx
}

// resolvedFields is a raw record seen through an alias table
type resolvedFields struct {
	values  map[Field]string
	present map[Field]bool
}

func (idx aliasIndex) resolve(raw map[string]string) resolvedFields {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	res := resolvedFields{
		values:  make(map[Field]string),
		present: make(map[Field]bool),
	}
	for _, name := range names {
		field, ok := idx[models.FoldLabel(name)]
		if !ok {
			continue
		}
		res.present[field] = true
		value := cleanValue(raw[name])
		if value != "" && res.values[field] == "" {
			res.values[field] = value
		}
	}
	return res
}

func (r resolvedFields) get(f Field) string {
	return r.values[f]
}

func (r resolvedFields) has(f Field) bool {
	return r.present[f]
}
