package storetypes

import (
	"time"

	"github.com/uptrace/bun"
)

// ProcessedFile marks an archive of a snapshot directory as fully loaded
type ProcessedFile struct {
	bun.BaseModel `bun:"table:processed_files"`

	Directory   string    `bun:"directory,pk,type:text" json:"directory"`
	Filename    string    `bun:"filename,pk,type:text" json:"filename"`
	ProcessedAt time.Time `bun:"processed_at,type:timestamp,notnull,default:current_timestamp" json:"processed_at"`
}

// Auditable carries the last-updated column every data relation has
type Auditable struct {
	DataAtualizacao time.Time `bun:"data_atualizacao,type:timestamp,notnull,default:current_timestamp"`
}

// Code tables share one shape

type Cnae struct {
	bun.BaseModel `bun:"table:cnaes"`
	Auditable

	Codigo    string  `bun:"codigo,pk,type:text"`
	Descricao *string `bun:"descricao,type:text"`
}

type Motivo struct {
	bun.BaseModel `bun:"table:motivos"`
	Auditable

	Codigo    string  `bun:"codigo,pk,type:text"`
	Descricao *string `bun:"descricao,type:text"`
}

type Municipio struct {
	bun.BaseModel `bun:"table:municipios"`
	Auditable

	Codigo    string  `bun:"codigo,pk,type:text"`
	Descricao *string `bun:"descricao,type:text"`
}

type NaturezaJuridica struct {
	bun.BaseModel `bun:"table:naturezas_juridicas"`
	Auditable

	Codigo    string  `bun:"codigo,pk,type:text"`
	Descricao *string `bun:"descricao,type:text"`
}

type Pais struct {
	bun.BaseModel `bun:"table:paises"`
	Auditable

	Codigo    string  `bun:"codigo,pk,type:text"`
	Descricao *string `bun:"descricao,type:text"`
}

type QualificacaoSocio struct {
	bun.BaseModel `bun:"table:qualificacoes_socios"`
	Auditable

	Codigo    string  `bun:"codigo,pk,type:text"`
	Descricao *string `bun:"descricao,type:text"`
}

// Empresa is one company keyed by the 8-digit CNPJ root
type Empresa struct {
	bun.BaseModel `bun:"table:empresas"`
	Auditable

	CNPJBasico                string   `bun:"cnpj_basico,pk,type:text"`
	RazaoSocial               *string  `bun:"razao_social,type:text"`
	NaturezaJuridica          *string  `bun:"natureza_juridica,type:text"`
	QualificacaoResponsavel   *string  `bun:"qualificacao_responsavel,type:text"`
	CapitalSocial             *float64 `bun:"capital_social,type:numeric(18,2)"`
	Porte                     *string  `bun:"porte,type:text"`
	EnteFederativoResponsavel *string  `bun:"ente_federativo_responsavel,type:text"`
}

// Estabelecimento is one establishment keyed by the full 14-digit CNPJ
type Estabelecimento struct {
	bun.BaseModel `bun:"table:estabelecimentos"`
	Auditable

	CNPJBasico                string     `bun:"cnpj_basico,pk,type:text"`
	CNPJOrdem                 string     `bun:"cnpj_ordem,pk,type:text"`
	CNPJDV                    string     `bun:"cnpj_dv,pk,type:text"`
	IdentificadorMatrizFilial *string    `bun:"identificador_matriz_filial,type:text"`
	NomeFantasia              *string    `bun:"nome_fantasia,type:text"`
	SituacaoCadastral         *string    `bun:"situacao_cadastral,type:text"`
	DataSituacaoCadastral     *time.Time `bun:"data_situacao_cadastral,type:date"`
	MotivoSituacaoCadastral   *string    `bun:"motivo_situacao_cadastral,type:text"`
	NomeCidadeExterior        *string    `bun:"nome_cidade_exterior,type:text"`
	Pais                      *string    `bun:"pais,type:text"`
	DataInicioAtividade       *time.Time `bun:"data_inicio_atividade,type:date"`
	CNAEFiscalPrincipal       *string    `bun:"cnae_fiscal_principal,type:text"`
	CNAEFiscalSecundaria      *string    `bun:"cnae_fiscal_secundaria,type:text"`
	TipoLogradouro            *string    `bun:"tipo_logradouro,type:text"`
	Logradouro                *string    `bun:"logradouro,type:text"`
	Numero                    *string    `bun:"numero,type:text"`
	Complemento               *string    `bun:"complemento,type:text"`
	Bairro                    *string    `bun:"bairro,type:text"`
	CEP                       *string    `bun:"cep,type:text"`
	UF                        *string    `bun:"uf,type:text"`
	Municipio                 *string    `bun:"municipio,type:text"`
	DDD1                      *string    `bun:"ddd_1,type:text"`
	Telefone1                 *string    `bun:"telefone_1,type:text"`
	DDD2                      *string    `bun:"ddd_2,type:text"`
	Telefone2                 *string    `bun:"telefone_2,type:text"`
	DDDFax                    *string    `bun:"ddd_fax,type:text"`
	Fax                       *string    `bun:"fax,type:text"`
	CorreioEletronico         *string    `bun:"correio_eletronico,type:text"`
	SituacaoEspecial          *string    `bun:"situacao_especial,type:text"`
	DataSituacaoEspecial      *time.Time `bun:"data_situacao_especial,type:date"`
}

// Socio is one partner of a company
type Socio struct {
	bun.BaseModel `bun:"table:socios"`
	Auditable

	CNPJBasico                       string     `bun:"cnpj_basico,pk,type:text"`
	IdentificadorDeSocio             string     `bun:"identificador_de_socio,pk,type:text"`
	NomeSocio                        *string    `bun:"nome_socio,type:text"`
	CNPJCPFDoSocio                   string     `bun:"cnpj_cpf_do_socio,pk,type:text"`
	QualificacaoDoSocio              *string    `bun:"qualificacao_do_socio,type:text"`
	DataEntradaSociedade             *time.Time `bun:"data_entrada_sociedade,type:date"`
	Pais                             *string    `bun:"pais,type:text"`
	RepresentanteLegal               *string    `bun:"representante_legal,type:text"`
	NomeDoRepresentante              *string    `bun:"nome_do_representante,type:text"`
	QualificacaoDoRepresentanteLegal *string    `bun:"qualificacao_do_representante_legal,type:text"`
	FaixaEtaria                      *string    `bun:"faixa_etaria,type:text"`
}

// DadosSimples holds the Simples Nacional and MEI options of a company
type DadosSimples struct {
	bun.BaseModel `bun:"table:dados_simples"`
	Auditable

	CNPJBasico            string     `bun:"cnpj_basico,pk,type:text"`
	OpcaoPeloSimples      *string    `bun:"opcao_pelo_simples,type:text"`
	DataOpcaoPeloSimples  *time.Time `bun:"data_opcao_pelo_simples,type:date"`
	DataExclusaoDoSimples *time.Time `bun:"data_exclusao_do_simples,type:date"`
	OpcaoPeloMEI          *string    `bun:"opcao_pelo_mei,type:text"`
	DataOpcaoPeloMEI      *time.Time `bun:"data_opcao_pelo_mei,type:date"`
	DataExclusaoDoMEI     *time.Time `bun:"data_exclusao_do_mei,type:date"`
}

// DataModels lists one model per data relation in load priority order
func DataModels() []interface{} {
	return []interface{}{
		(*Cnae)(nil),
		(*Motivo)(nil),
		(*Municipio)(nil),
		(*NaturezaJuridica)(nil),
		(*Pais)(nil),
		(*QualificacaoSocio)(nil),
		(*Empresa)(nil),
		(*Estabelecimento)(nil),
		(*Socio)(nil),
		(*DadosSimples)(nil),
	}
}
