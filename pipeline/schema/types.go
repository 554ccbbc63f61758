package schema

import (
	"strings"
)

// Type identifies one of the CNPJ table kinds
type Type int

const (
	Unknown Type = iota
	Cnaes
	Motivos
	Municipios
	Naturezas
	Paises
	Qualificacoes
	Empresas
	Estabelecimentos
	Socios
	Simples
)

// RuleKind selects a normalization applied to one column
type RuleKind int

const (
	Money RuleKind = iota + 1
	Date
	CountryCode
	PartnerID
)

func (k RuleKind) String() string {
	switch k {
	case Money:
		return "money"
	case Date:
		return "date"
	case CountryCode:
		return "country_code"
	case PartnerID:
		return "partner_id"
	default:
		return "unknown"
	}
}

// Rule binds a normalization to a column position
type Rule struct {
	Kind   RuleKind
	Column string
}

// Definition is the static description of a Type
type Definition struct {
	Type     Type
	Name     string
	Pattern  string
	Prefix   string
	Relation string
	Columns  []string
	Rules    []Rule
}

var codeColumns = []string{"codigo", "descricao"}

// definitions are in priority order; classification walks them front to back
var definitions = []Definition{
	{Type: Cnaes, Name: "cnaes", Pattern: "CNAECSV", Prefix: "CNAES", Relation: "cnaes", Columns: codeColumns},
	{Type: Motivos, Name: "motivos", Pattern: "MOTICSV", Prefix: "MOTIVOS", Relation: "motivos", Columns: codeColumns},
	{Type: Municipios, Name: "municipios", Pattern: "MUNICCSV", Prefix: "MUNICIPIOS", Relation: "municipios", Columns: codeColumns},
	{Type: Naturezas, Name: "naturezas", Pattern: "NATJUCSV", Prefix: "NATUREZAS", Relation: "naturezas_juridicas", Columns: codeColumns},
	{Type: Paises, Name: "paises", Pattern: "PAISCSV", Prefix: "PAISES", Relation: "paises", Columns: codeColumns},
	{Type: Qualificacoes, Name: "qualificacoes", Pattern: "QUALSCSV", Prefix: "QUALIFICACOES", Relation: "qualificacoes_socios", Columns: codeColumns},
	{
		Type: Empresas, Name: "empresas", Pattern: "EMPRECSV", Prefix: "EMPRESAS", Relation: "empresas",
		Columns: []string{
			"cnpj_basico", "razao_social", "natureza_juridica",
			"qualificacao_responsavel", "capital_social", "porte",
			"ente_federativo_responsavel",
		},
		Rules: []Rule{{Kind: Money, Column: "capital_social"}},
	},
	{
		Type: Estabelecimentos, Name: "estabelecimentos", Pattern: "ESTABELE", Prefix: "ESTABELECIMENTOS", Relation: "estabelecimentos",
		Columns: []string{
			"cnpj_basico", "cnpj_ordem", "cnpj_dv", "identificador_matriz_filial",
			"nome_fantasia", "situacao_cadastral", "data_situacao_cadastral",
			"motivo_situacao_cadastral", "nome_cidade_exterior", "pais",
			"data_inicio_atividade", "cnae_fiscal_principal", "cnae_fiscal_secundaria",
			"tipo_logradouro", "logradouro", "numero", "complemento", "bairro",
			"cep", "uf", "municipio", "ddd_1", "telefone_1", "ddd_2", "telefone_2",
			"ddd_fax", "fax", "correio_eletronico", "situacao_especial",
			"data_situacao_especial",
		},
		Rules: []Rule{
			{Kind: Date, Column: "data_situacao_cadastral"},
			{Kind: Date, Column: "data_inicio_atividade"},
			{Kind: Date, Column: "data_situacao_especial"},
			{Kind: CountryCode, Column: "pais"},
		},
	},
	{
		Type: Socios, Name: "socios", Pattern: "SOCIOCSV", Prefix: "SOCIOS", Relation: "socios",
		Columns: []string{
			"cnpj_basico", "identificador_de_socio", "nome_socio", "cnpj_cpf_do_socio",
			"qualificacao_do_socio", "data_entrada_sociedade", "pais",
			"representante_legal", "nome_do_representante",
			"qualificacao_do_representante_legal", "faixa_etaria",
		},
		Rules: []Rule{
			{Kind: Date, Column: "data_entrada_sociedade"},
			{Kind: PartnerID, Column: "cnpj_cpf_do_socio"},
		},
	},
	{
		Type: Simples, Name: "simples", Pattern: "SIMPLES", Prefix: "SIMPLES", Relation: "dados_simples",
		Columns: []string{
			"cnpj_basico", "opcao_pelo_simples", "data_opcao_pelo_simples",
			"data_exclusao_do_simples", "opcao_pelo_mei", "data_opcao_pelo_mei",
			"data_exclusao_do_mei",
		},
		Rules: []Rule{
			{Kind: Date, Column: "data_opcao_pelo_simples"},
			{Kind: Date, Column: "data_exclusao_do_simples"},
			{Kind: Date, Column: "data_opcao_pelo_mei"},
			{Kind: Date, Column: "data_exclusao_do_mei"},
		},
	},
}

// ReferenceArchives are fetched sequentially before any data archive
var ReferenceArchives = map[string]struct{}{
	"Cnaes.zip":         {},
	"Motivos.zip":       {},
	"Municipios.zip":    {},
	"Naturezas.zip":     {},
	"Paises.zip":        {},
	"Qualificacoes.zip": {},
}

// Definitions returns the static table in priority order
func Definitions() []Definition {
	return definitions
}

// Lookup returns the definition for t
func Lookup(t Type) (Definition, bool) {
	if t <= Unknown || int(t) > len(definitions) {
		return Definition{}, false
	}
	return definitions[t-1], true
}

func (t Type) String() string {
	if d, ok := Lookup(t); ok {
		return d.Name
	}
	return "unknown"
}

// Relation returns the target table name, "" for Unknown
func (t Type) Relation() string {
	d, _ := Lookup(t)
	return d.Relation
}

// Columns returns the positional column list
func (t Type) Columns() []string {
	d, _ := Lookup(t)
	return d.Columns
}

// Rules returns the normalization rules declared for t
func (t Type) Rules() []Rule {
	d, _ := Lookup(t)
	return d.Rules
}

// IsReference reports whether t is one of the small code tables
func (t Type) IsReference() bool {
	return t >= Cnaes && t <= Qualificacoes
}

// Priority orders scheduling; lower loads first and Unknown sorts last
func (t Type) Priority() int {
	if t == Unknown {
		return len(definitions) + 1
	}
	return int(t)
}

// ClassifyFile maps an extracted content file name to its Type. The first
// pattern in table order that occurs in the upper-cased name wins.
func ClassifyFile(name string) Type {
	upper := strings.ToUpper(name)
	for _, d := range definitions {
		if strings.Contains(upper, d.Pattern) {
			return d.Type
		}
	}
	return Unknown
}

// ClassifyArchive maps an archive name such as "Empresas3.zip" to its Type
func ClassifyArchive(name string) Type {
	upper := strings.ToUpper(name)
	for _, d := range definitions {
		if strings.HasPrefix(upper, d.Prefix) {
			return d.Type
		}
	}
	return Unknown
}

// IsReferenceArchive reports whether name is in the exact reference set
func IsReferenceArchive(name string) bool {
	_, ok := ReferenceArchives[name]
	return ok
}

// IsContentMember reports whether an archive member should be extracted
func IsContentMember(name string) bool {
	return ClassifyFile(name) != Unknown
}
